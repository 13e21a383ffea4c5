package ufw

import (
	"testing"

	"fwagent/internal/rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortAndProtocol(t *testing.T) {
	tests := []struct {
		to, port, proto string
		ok              bool
	}{
		{"22/tcp", "22", "tcp", true},
		{"8080", "8080", "", true},
		{"6000:6007/UDP", "6000:6007", "udp", true},
		{"80,443/tcp", "80,443", "tcp", true},
		{"Anywhere", "", "", false},
		{"OpenSSH", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		port, proto, ok := StatusLine{To: tt.to}.PortAndProtocol()
		if port != tt.port || proto != tt.proto || ok != tt.ok {
			t.Fatalf("PortAndProtocol(%q) = %q, %q, %v, want %q, %q, %v", tt.to, port, proto, ok, tt.port, tt.proto, tt.ok)
		}
	}
}

func TestIsConversionCandidate(t *testing.T) {
	base := StatusLine{To: "80", Action: "ALLOW", Direction: "IN", From: "Anywhere", Enabled: true}

	assert.True(t, base.IsConversionCandidate())

	for name, mutate := range map[string]func(*StatusLine){
		"protocol specific": func(s *StatusLine) { s.To, s.IsProtocolSpecific = "80/tcp", true },
		"outbound":          func(s *StatusLine) { s.Direction = "OUT" },
		"limit":             func(s *StatusLine) { s.Action = "LIMIT" },
		"disabled":          func(s *StatusLine) { s.Enabled = false },
		"named service":     func(s *StatusLine) { s.To = "OpenSSH" },
		"port list":         func(s *StatusLine) { s.To = "80,443" },
		"address target":    func(s *StatusLine) { s.To = "10.0.0.1 80" },
	} {
		s := base
		mutate(&s)
		assert.False(t, s.IsConversionCandidate(), name)
	}

	rng := base
	rng.To = "9000:9010"
	assert.True(t, rng.IsConversionCandidate())
}

func TestFoldGenericPortCoversBothProtocols(t *testing.T) {
	sl, ok := ParseStatusLine("[ 9] 8080   ALLOW IN   Anywhere  (v6) # Web App", true)
	require.True(t, ok)

	got := Fold(sl, "agent-1")
	require.Len(t, got, 2)
	for i, proto := range []string{"tcp", "udp"} {
		assert.Equal(t, rule.Rule{
			Zone:       rule.ZonelessScope,
			Kind:       rule.KindPort,
			Family:     rule.FamilyIPv6,
			Port:       "8080",
			Protocol:   proto,
			Source:     rule.AnySource,
			Policy:     true,
			Permanent:  true,
			Descriptor: "Web App",
			AgentID:    "agent-1",
		}, got[i])
	}
}

func TestFoldSourceAndPolicy(t *testing.T) {
	sl, ok := ParseStatusLine("[ 3] 3306/tcp                   DENY IN     192.168.1.0/24", true)
	require.True(t, ok)

	got := Fold(sl, "")
	require.Len(t, got, 1)
	assert.Equal(t, "192.168.1.0/24", got[0].Source)
	assert.False(t, got[0].Policy)
	assert.Equal(t, rule.FamilyIPv4, got[0].Family)
	assert.Equal(t, "tcp", got[0].Protocol)
}

func TestFoldApplicationProfile(t *testing.T) {
	sl, ok := ParseStatusLine("[ 1] OpenSSH                    ALLOW IN    Anywhere", true)
	require.True(t, ok)

	got := Fold(sl, "")
	require.Len(t, got, 1)
	assert.Equal(t, rule.KindService, got[0].Kind)
	assert.Equal(t, "OpenSSH", got[0].Value)
}

func TestFoldIgnoresOutboundAndDisabled(t *testing.T) {
	for _, line := range []string{
		"[ 1] 53                         ALLOW OUT   Anywhere (out)",
		"[ 2] 80                         ALLOW IN    Anywhere [disabled]",
		"[ 3] Anywhere                   DENY IN     10.0.0.5",
	} {
		sl, ok := ParseStatusLine(line, true)
		require.True(t, ok, line)
		assert.Empty(t, Fold(sl, ""), line)
	}
}

func TestFoldAllKeepsListingOrder(t *testing.T) {
	lines := ParseStatus(dualStack(
		fakeRule{to: "22/tcp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "80,443/tcp", action: "ALLOW", from: "Anywhere"},
	).render(), true)

	got := FoldAll(lines, "")
	require.Len(t, got, 6)
	assert.Equal(t, "22", got[0].Port)
	assert.Equal(t, "80", got[1].Port)
	assert.Equal(t, "443", got[2].Port)
	assert.Equal(t, rule.FamilyIPv4, got[2].Family)
	assert.Equal(t, rule.FamilyIPv6, got[3].Family)
}
