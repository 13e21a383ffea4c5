// Package identity persists the agent's id across restarts.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const DefaultPath = "/var/lib/fwagent/agent-id"

var ErrEmptyIdentity = errors.New("identity file is empty")

// Load returns the id stored at path, creating the file with a fresh UUID
// on first use. The file is created exclusively and read-only, so two agents
// racing on first start end up with the same id.
func Load(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	if id, err := read(path); err == nil {
		return id, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	id := uuid.NewString()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o400)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return read(path)
		}
		return "", fmt.Errorf("create identity: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(id + "\n"); err != nil {
		return "", fmt.Errorf("write identity: %w", err)
	}
	slog.Info("agent identity created", "path", path, "id", id)
	return id, nil
}

func read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyIdentity)
	}
	if _, err := uuid.Parse(id); err != nil {
		slog.Warn("agent identity is not a uuid", "path", path)
	}
	return id, nil
}
