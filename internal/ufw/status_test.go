package ufw

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusLineWebAppScenario(t *testing.T) {
	got, ok := ParseStatusLine("[ 9] 8080   ALLOW IN   Anywhere  (v6) # Web App", true)
	require.True(t, ok)

	want := StatusLine{
		RuleNumber: 9,
		To:         "8080",
		RawTo:      "8080",
		Action:     "ALLOW",
		Direction:  "IN",
		From:       "Anywhere",
		RawFrom:    "Anywhere",
		Comment:    "Web App",
		IsIPv6:     true,
		Enabled:    true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseStatusLine() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		numbered  bool
		number    int
		to        string
		action    string
		direction string
		from      string
		comment   string
		ipv6      bool
		enabled   bool
		protoSpec bool
	}{
		{
			name:     "numbered tcp rule",
			line:     "[ 1] 22/tcp                     ALLOW IN    Anywhere",
			numbered: true, number: 1, to: "22/tcp", action: "ALLOW", direction: "IN",
			from: "Anywhere", enabled: true, protoSpec: true,
		},
		{
			name:     "numbered v6 twin",
			line:     "[ 2] 22/tcp (v6)                ALLOW IN    Anywhere (v6)",
			numbered: true, number: 2, to: "22/tcp", action: "ALLOW", direction: "IN",
			from: "Anywhere", ipv6: true, enabled: true, protoSpec: true,
		},
		{
			name:   "plain status defaults direction",
			line:   "443                        DENY        Anywhere",
			number: -1, to: "443", action: "DENY", direction: "IN",
			from: "Anywhere", enabled: true,
		},
		{
			name:     "fused action direction",
			line:     "[ 3] 22/tcp   ALLOWIN   10.0.0.0/8",
			numbered: true, number: 3, to: "22/tcp", action: "ALLOW", direction: "IN",
			from: "10.0.0.0/8", enabled: true, protoSpec: true,
		},
		{
			name:     "outbound rule with marker",
			line:     "[ 4] 53                         ALLOW OUT   Anywhere (out)",
			numbered: true, number: 4, to: "53", action: "ALLOW", direction: "OUT",
			from: "Anywhere", enabled: true,
		},
		{
			name:     "ipv6 source without marker",
			line:     "[ 5] 22                         ALLOW IN    2001:db8::/32",
			numbered: true, number: 5, to: "22", action: "ALLOW", direction: "IN",
			from: "2001:db8::/32", ipv6: true, enabled: true,
		},
		{
			name:     "ipv6 destination",
			line:     "[ 6] 2001:db8::1 443/tcp        ALLOW IN    Anywhere",
			numbered: true, number: 6, to: "2001:db8::1 443/tcp", action: "ALLOW", direction: "IN",
			from: "Anywhere", ipv6: true, enabled: true,
		},
		{
			name:     "ipv4 source stays ipv4",
			line:     "[ 7] 3306                       REJECT IN   192.168.1.10",
			numbered: true, number: 7, to: "3306", action: "REJECT", direction: "IN",
			from: "192.168.1.10", enabled: true,
		},
		{
			name:     "disabled marker",
			line:     "[ 8] 8443                       ALLOW IN    Anywhere [disabled]",
			numbered: true, number: 8, to: "8443", action: "ALLOW", direction: "IN",
			from: "Anywhere", enabled: false,
		},
		{
			name:     "hash inside quotes is not a comment",
			line:     `[10] 8000                       ALLOW IN    Anywhere on "br#0"   # lab`,
			numbered: true, number: 10, to: "8000", action: "ALLOW", direction: "IN",
			from: `Anywhere on "br#0"`, comment: "lab", enabled: true,
		},
		{
			name:     "limit rule",
			line:     "[11] 22/tcp                     LIMIT IN    Anywhere",
			numbered: true, number: 11, to: "22/tcp", action: "LIMIT", direction: "IN",
			from: "Anywhere", enabled: true, protoSpec: true,
		},
		{
			name:     "named application",
			line:     "[12] OpenSSH                    ALLOW IN    Anywhere",
			numbered: true, number: 12, to: "OpenSSH", action: "ALLOW", direction: "IN",
			from: "Anywhere", enabled: true,
		},
		{
			name:     "port range",
			line:     "[13] 6000:6007/udp              ALLOW IN    Anywhere",
			numbered: true, number: 13, to: "6000:6007/udp", action: "ALLOW", direction: "IN",
			from: "Anywhere", enabled: true, protoSpec: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseStatusLine(tt.line, tt.numbered)
			if !ok {
				t.Fatalf("ParseStatusLine(%q) ok = false, want true", tt.line)
			}
			assert.Equal(t, tt.number, got.RuleNumber, "RuleNumber")
			assert.Equal(t, tt.to, got.To, "To")
			assert.Equal(t, tt.action, got.Action, "Action")
			assert.Equal(t, tt.direction, got.Direction, "Direction")
			assert.Equal(t, tt.from, got.From, "From")
			assert.Equal(t, tt.comment, got.Comment, "Comment")
			assert.Equal(t, tt.ipv6, got.IsIPv6, "IsIPv6")
			assert.Equal(t, tt.enabled, got.Enabled, "Enabled")
			assert.Equal(t, tt.protoSpec, got.IsProtocolSpecific, "IsProtocolSpecific")
		})
	}
}

func TestParseStatusLineRejectsNoise(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"Status: active",
		"Logging: on (low)",
		"Default: deny (incoming), allow (outgoing), disabled (routed)",
		"New profiles: skip",
		"     To                         Action      From",
		"To                         Action      From",
		"--                         ------      ----",
		"singletoken",
	}
	for _, line := range lines {
		if got, ok := ParseStatusLine(line, false); ok {
			t.Fatalf("ParseStatusLine(%q) = %+v, want skip", line, got)
		}
	}
}

func TestParseStatusLineRequiresNumberInNumberedMode(t *testing.T) {
	line := "22/tcp                     ALLOW IN    Anywhere"
	if _, ok := ParseStatusLine(line, true); ok {
		t.Fatalf("ParseStatusLine(%q, true) ok = true, want false", line)
	}
	if _, ok := ParseStatusLine(line, false); !ok {
		t.Fatalf("ParseStatusLine(%q, false) ok = false, want true", line)
	}
}

func TestParseStatusLineIsIdempotent(t *testing.T) {
	lines := []string{
		"[ 9] 8080   ALLOW IN   Anywhere  (v6) # Web App",
		"[ 1] 22/tcp                     ALLOW IN    Anywhere",
		"[ 3] 22/tcp   ALLOWIN   10.0.0.0/8",
	}
	for _, line := range lines {
		first, ok1 := ParseStatusLine(line, true)
		second, ok2 := ParseStatusLine(line, true)
		if ok1 != ok2 {
			t.Fatalf("ParseStatusLine(%q) ok differs between calls", line)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("ParseStatusLine(%q) not idempotent (-first +second):\n%s", line, diff)
		}
	}
}

func TestParseStatus(t *testing.T) {
	output := `Status: active

     To                         Action      From
     --                         ------      ----
[ 1] 22/tcp                     ALLOW IN    Anywhere
[ 2] 80                         ALLOW IN    Anywhere                   # web
[ 3] 22/tcp (v6)                ALLOW IN    Anywhere (v6)
[ 4] 80 (v6)                    ALLOW IN    Anywhere (v6)              # web

`
	got := ParseStatus(output, true)
	require.Len(t, got, 4)

	numbers := make([]int, 0, len(got))
	for _, sl := range got {
		numbers = append(numbers, sl.RuleNumber)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, numbers)
	assert.False(t, got[1].IsIPv6)
	assert.True(t, got[3].IsIPv6)
	assert.Equal(t, "web", got[3].Comment)
}

func TestSplitFusedDirection(t *testing.T) {
	tests := []struct {
		in, action, direction string
	}{
		{"ALLOWIN", "ALLOW", "IN"},
		{"DENYOUT", "DENY", "OUT"},
		{"allowin", "allow", "IN"},
		{"login", "login", ""},
		{"ALLOW", "ALLOW", ""},
		{"IN", "IN", ""},
	}
	for _, tt := range tests {
		action, direction := splitFusedDirection(tt.in)
		if action != tt.action || direction != tt.direction {
			t.Fatalf("splitFusedDirection(%q) = %q, %q, want %q, %q", tt.in, action, direction, tt.action, tt.direction)
		}
	}
}
