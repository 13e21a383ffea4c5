package richrule

import (
	"errors"
	"testing"

	"fwagent/internal/rule"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrammar(t *testing.T) {
	r, err := Parse(`rule family="ipv4" source NOT address="10.0.0.0/8" port port="22" protocol="tcp" log prefix="SSH Access" level="info" limit value="3/m" accept`)
	require.NoError(t, err)

	want := []Element{
		{Attrs: []Attr{{Key: "family", Value: "ipv4"}}},
		{Name: "source", Not: true, Attrs: []Attr{{Key: "address", Value: "10.0.0.0/8"}}},
		{Name: "port", Attrs: []Attr{{Key: "port", Value: "22"}, {Key: "protocol", Value: "tcp"}}},
		{Name: "log", Attrs: []Attr{{Key: "prefix", Value: "SSH Access"}, {Key: "level", Value: "info"}}},
		{Name: "limit", Attrs: []Attr{{Key: "value", Value: "3/m"}}},
		{Name: "accept", Flag: true},
	}
	if diff := cmp.Diff(want, r.Elements); diff != "" {
		t.Fatalf("Parse() elements mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, rule.FamilyIPv4, r.Family())

	action, ok := r.Action()
	assert.True(t, ok)
	assert.Equal(t, "accept", action)
}

func TestParseGrammarRoundTrip(t *testing.T) {
	inputs := []string{
		`rule family="ipv4" source address="192.168.1.0/24" port port="22" protocol="tcp" log prefix="SSH Access" level="info" accept`,
		`rule family=ipv6   source NOT address=2001:db8::/32   service name=ssh   reject type="icmp6-adm-prohibited"`,
		`rule family='ipv4' forward-port port='80' protocol='tcp' to-port='8080' to-addr='10.0.0.2'`,
		`rule priority="-10" family="ipv4" masquerade`,
		`rule protocol value="icmp" audit drop`,
		"rule family=\"ipv4\" port port=\"22\" protocol=\"tcp\" log prefix=\"a\tb\" accept",
		`rule family="ipv4" port port="22" protocol="tcp" log prefix='say "hi"' accept`,
	}
	for _, in := range inputs {
		first, err := Parse(in)
		require.NoError(t, err, in)
		second, err := Parse(first.String())
		require.NoError(t, err, first.String())
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("round trip of %q mismatch (-first +second):\n%s", in, diff)
		}
		assert.Equal(t, first.String(), second.String())
	}
}

func TestParseGrammarProtectsQuotedWhitespace(t *testing.T) {
	r, err := Parse(`rule log prefix="a  b c" accept`)
	require.NoError(t, err)
	logs := r.Components("log")
	require.Len(t, logs, 1)
	v, ok := logs[0].Attr("prefix")
	assert.True(t, ok)
	assert.Equal(t, "a  b c", v)
	assert.Equal(t, `rule log prefix="a  b c" accept`, r.String())
}

func TestParseGrammarKeepsQuotedTabsAndQuotes(t *testing.T) {
	r, err := Parse("rule log prefix=\"a\tb\" accept")
	require.NoError(t, err)
	v, _ := r.Components("log")[0].Attr("prefix")
	assert.Equal(t, "a\tb", v)
	assert.Equal(t, "rule log prefix=\"a\tb\" accept", r.String())

	r, err = Parse(`rule log prefix='say "hi"' accept`)
	require.NoError(t, err)
	v, _ = r.Components("log")[0].Attr("prefix")
	assert.Equal(t, `say "hi"`, v)
	assert.Equal(t, `rule log prefix='say "hi"' accept`, r.String())
}

func TestParseGrammarErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "empty", in: "", want: ErrNotRichRule},
		{name: "no rule keyword", in: `family="ipv4" accept`, want: ErrNotRichRule},
		{name: "unknown word", in: `rule family="ipv4" bogus accept`, want: ErrUnknownToken},
		{name: "unclosed quote", in: `rule log prefix="oops accept`, want: ErrUnclosedQuote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestParseGrammarNoFamily(t *testing.T) {
	r, err := Parse(`rule port port="80" protocol="tcp" accept`)
	require.NoError(t, err)
	assert.Equal(t, rule.FamilyBoth, r.Family())
}

func TestNewPortRule(t *testing.T) {
	tests := []struct {
		name string
		in   PortRule
		want string
	}{
		{
			name: "source and log",
			in:   PortRule{Family: rule.FamilyIPv4, Source: "192.168.1.0/24", Port: "22", Protocol: "tcp", Allow: true, LogPrefix: "SSH Access"},
			want: `rule family="ipv4" source address="192.168.1.0/24" port port="22" protocol="tcp" log prefix="SSH Access" accept`,
		},
		{
			name: "deny any source",
			in:   PortRule{Family: rule.FamilyIPv6, Source: rule.AnySource, Port: "25", Protocol: "tcp"},
			want: `rule family="ipv6" port port="25" protocol="tcp" reject`,
		},
		{
			name: "family agnostic",
			in:   PortRule{Family: rule.FamilyBoth, Port: "53", Protocol: "udp", Allow: true},
			want: `rule port port="53" protocol="udp" accept`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPortRule(tt.in).String()
			if got != tt.want {
				t.Fatalf("NewPortRule().String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPortRuleParsesBack(t *testing.T) {
	text := NewPortRule(PortRule{Family: rule.FamilyIPv4, Source: "10.1.0.0/16", Port: "8443", Protocol: "tcp", Allow: true, LogPrefix: "admin ui"}).String()
	got := ParseFragments(text)
	require.Len(t, got, 1)
	assert.Equal(t, Fragment{Port: "8443", Protocol: "tcp", Source: "10.1.0.0/16", Policy: "accept", Description: "admin ui", Family: rule.FamilyIPv4}, got[0])
}
