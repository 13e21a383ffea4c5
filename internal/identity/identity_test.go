package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesThenReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "agent-id")

	first, err := Load(path)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), info.Mode().Perm())

	second, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadExistingFreeForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-id")
	require.NoError(t, os.WriteFile(path, []byte("  host-7\n"), 0o600))

	id, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "host-7", id)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-id")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrEmptyIdentity)
}
