package ufw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webServer() *fakeUFW {
	return dualStack(
		fakeRule{to: "22/tcp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "443/tcp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "53/udp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "8443/tcp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "80", action: "ALLOW", from: "Anywhere", comment: "web"},
	)
}

func TestConverterSplitsGenericRuleAndPrunesIPv6Twin(t *testing.T) {
	f := webServer()
	lines := ParseStatus(f.render(), true)
	require.Len(t, lines, 10)
	require.Equal(t, 5, lines[4].RuleNumber)
	require.Equal(t, "80", lines[4].To)

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{Converted: 1, Inserted: 2, Pruned: 1, Passes: 2, Converged: true}, report)

	assert.True(t, f.has("80/tcp", "ALLOW", "Anywhere", false))
	assert.True(t, f.has("80/udp", "ALLOW", "Anywhere", false))
	assert.True(t, f.has("80/tcp", "ALLOW", "Anywhere", true))
	assert.True(t, f.has("80/udp", "ALLOW", "Anywhere", true))
	assert.False(t, f.has("80", "ALLOW", "Anywhere", false), "IPv4 generic rule left behind")
	assert.False(t, f.has("80", "ALLOW", "Anywhere", true), "IPv6 generic rule left behind")
	assert.Len(t, f.all(), 12)

	for _, r := range f.all() {
		if r.to == "80/tcp" || r.to == "80/udp" {
			assert.Equal(t, "web", r.comment)
		}
	}
	assert.Equal(t, 1, f.commandsStartingWith("ufw", "--force", "delete", "5"))
}

func TestConverterIsNoopWithoutGenericRules(t *testing.T) {
	f := dualStack(fakeRule{to: "22/tcp", action: "ALLOW", from: "Anywhere"})

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Converged: true}, report)
	assert.Equal(t, 0, f.commandsStartingWith("ufw", "--force", "delete"))
}

func TestConverterPinsFamilyForSingleFamilyRules(t *testing.T) {
	f := &fakeUFW{
		v4: []fakeRule{{to: "3000", action: "DENY", from: "Anywhere"}},
		v6: []fakeRule{{to: "8080", action: "ALLOW", from: "2001:db8::/32", comment: "lab"}},
	}

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Converted)
	assert.Equal(t, 4, report.Inserted)
	assert.Equal(t, 0, report.Pruned)
	assert.True(t, report.Converged)

	assert.True(t, f.has("3000/tcp", "DENY", "Anywhere", false))
	assert.True(t, f.has("3000/udp", "DENY", "Anywhere", false))
	assert.False(t, f.has("3000/tcp", "DENY", "Anywhere", true), "IPv4-only rule leaked into IPv6")
	assert.True(t, f.has("8080/tcp", "ALLOW", "2001:db8::/32", true))
	assert.True(t, f.has("8080/udp", "ALLOW", "2001:db8::/32", true))
	assert.Len(t, f.all(), 4)
}

func TestConverterSkipsRulesItCannotDelete(t *testing.T) {
	f := webServer()
	f.failDelete = func(r fakeRule) bool { return r.to == "80" }

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Converted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, f.commandsStartingWith("ufw", "allow"))
	assert.True(t, f.has("80", "ALLOW", "Anywhere", false))
	assert.True(t, f.has("80", "ALLOW", "Anywhere", true))
}

func TestConverterFailsWhenReplacementInsertFails(t *testing.T) {
	f := webServer()
	f.failInsert = func(args []string) bool { return len(args) > 1 && args[1] == "80/udp" }

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Converted)
	assert.True(t, f.has("80/tcp", "ALLOW", "Anywhere", false))
}

func TestConverterStopsPruningAtBound(t *testing.T) {
	f := webServer()
	f.resurrect = true

	report, err := NewConverter(NewClient(f)).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Converged)
	assert.Equal(t, MaxPruneIterations, report.Passes)
	assert.Equal(t, MaxPruneIterations, report.Pruned)
}

func TestConverterReportsInactiveFirewall(t *testing.T) {
	f := &fakeUFW{inactive: true}
	_, err := NewConverter(NewClient(f)).Run(context.Background())
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("Run() error = %v, want ErrInactive", err)
	}
}

func TestDecomposeCandidatesOrderAndTwins(t *testing.T) {
	lines := ParseStatus(dualStack(
		fakeRule{to: "80", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "22/tcp", action: "ALLOW", from: "Anywhere"},
		fakeRule{to: "9000:9010", action: "REJECT", from: "10.0.0.0/8"},
		fakeRule{to: "25", action: "LIMIT", from: "Anywhere"},
	).render(), true)

	got := decomposeCandidates(lines, map[conversionKey]struct{}{}, map[skipKey]struct{}{})
	require.Len(t, got, 2)
	assert.Equal(t, "9000:9010", got[0].line.To)
	assert.Equal(t, 3, got[0].line.RuleNumber)
	assert.Equal(t, "80", got[1].line.To)
	assert.True(t, got[1].twin)
	for _, c := range got {
		assert.False(t, c.line.IsIPv6)
	}
}

func TestReplacementSpec(t *testing.T) {
	twin := candidate{line: StatusLine{To: "80", Action: "ALLOW", From: "Anywhere", Comment: "web"}, twin: true}
	assert.Equal(t, []string{"allow", "80/tcp", "comment", "web"}, replacementSpec(twin, "tcp").Args())

	v4 := candidate{line: StatusLine{To: "3000", Action: "DENY", From: "Anywhere"}}
	assert.Equal(t, []string{"deny", "from", "0.0.0.0/0", "to", "any", "port", "3000", "proto", "udp"}, replacementSpec(v4, "udp").Args())

	v6 := candidate{line: StatusLine{To: "53", Action: "REJECT", From: "Anywhere", IsIPv6: true}}
	assert.Equal(t, []string{"reject", "from", "::/0", "to", "any", "port", "53", "proto", "tcp"}, replacementSpec(v6, "tcp").Args())

	src := candidate{line: StatusLine{To: "22", Action: "ALLOW", From: "192.168.1.0/24"}}
	assert.Equal(t, []string{"allow", "from", "192.168.1.0/24", "to", "any", "port", "22", "proto", "tcp"}, replacementSpec(src, "tcp").Args())
}
