package richrule

import (
	"errors"
	"fmt"
	"strings"

	"fwagent/internal/rule"
)

var (
	ErrNotRichRule   = errors.New("rich rule must start with 'rule'")
	ErrUnknownToken  = errors.New("unknown rich rule token")
	ErrUnclosedQuote = errors.New("unclosed quote in rich rule")
)

// quotedSpace and quotedTab stand in for whitespace inside quoted values
// while the rule is split on whitespace.
const (
	quotedSpace = "\x00"
	quotedTab   = "\x01"
)

var flagComponents = map[string]struct{}{
	"accept":     {},
	"reject":     {},
	"drop":       {},
	"mark":       {},
	"masquerade": {},
}

var compositeComponents = map[string]struct{}{
	"source":       {},
	"destination":  {},
	"service":      {},
	"port":         {},
	"protocol":     {},
	"source-port":  {},
	"icmp-type":    {},
	"icmp-block":   {},
	"forward-port": {},
	"log":          {},
	"nflog":        {},
	"audit":        {},
	"limit":        {},
}

type Attr struct {
	Key   string
	Value string
}

// Element is one item of a rule in source order: a flag component
// (accept), a composite component with attributes (port port=.. protocol=..),
// or, when Name is empty, a bare key=value such as family="ipv4".
type Element struct {
	Name  string
	Flag  bool
	Not   bool
	Attrs []Attr
}

func (e Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Rule is a parsed rich rule.
type Rule struct {
	Elements []Element
}

// Parse tokenizes and parses a rich rule string.
func Parse(text string) (*Rule, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 || strings.ToLower(tokens[0]) != "rule" {
		return nil, ErrNotRichRule
	}

	r := &Rule{}
	var cur *Element
	flush := func() {
		if cur != nil {
			r.Elements = append(r.Elements, *cur)
			cur = nil
		}
	}

	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		name := strings.ToLower(tok)
		if _, ok := flagComponents[name]; ok {
			flush()
			r.Elements = append(r.Elements, Element{Name: name, Flag: true})
			continue
		}
		if _, ok := compositeComponents[name]; ok {
			flush()
			cur = &Element{Name: name}
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "not") {
				cur.Not = true
				i++
			}
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
		}
		attr := Attr{Key: strings.ToLower(key), Value: unquote(value)}
		if cur != nil {
			cur.Attrs = append(cur.Attrs, attr)
			continue
		}
		r.Elements = append(r.Elements, Element{Attrs: []Attr{attr}})
	}
	flush()
	return r, nil
}

// String renders the rule in canonical form. Values are double-quoted unless
// they contain a double quote.
func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString("rule")
	for _, e := range r.Elements {
		if e.Name != "" {
			b.WriteByte(' ')
			b.WriteString(e.Name)
			if e.Not {
				b.WriteString(" NOT")
			}
		}
		for _, a := range e.Attrs {
			b.WriteByte(' ')
			b.WriteString(a.Key)
			b.WriteByte('=')
			b.WriteString(quoteValue(a.Value))
		}
	}
	return b.String()
}

// Family returns the rule-level family attribute, or FamilyBoth if absent.
func (r *Rule) Family() rule.Family {
	for _, e := range r.Elements {
		if e.Name != "" {
			continue
		}
		if v, ok := e.Attr("family"); ok {
			fam, err := rule.ParseFamily(v)
			if err == nil {
				return fam
			}
		}
	}
	return rule.FamilyBoth
}

// Components returns every element with the given component name.
func (r *Rule) Components(name string) []Element {
	var out []Element
	for _, e := range r.Elements {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Action returns the last accept, reject or drop flag of the rule.
func (r *Rule) Action() (string, bool) {
	for i := len(r.Elements) - 1; i >= 0; i-- {
		e := r.Elements[i]
		if !e.Flag {
			continue
		}
		switch e.Name {
		case "accept", "reject", "drop":
			return e.Name, true
		}
	}
	return "", false
}

// PortRule describes the single-port rich rule the applier writes.
type PortRule struct {
	Family    rule.Family
	Source    string
	Port      string
	Protocol  string
	Allow     bool
	LogPrefix string
}

// NewPortRule builds a rich rule for one port. Family must be IPv4 or IPv6 to
// be pinned; FamilyBoth leaves the rule family-agnostic.
func NewPortRule(p PortRule) *Rule {
	r := &Rule{}
	if p.Family == rule.FamilyIPv4 || p.Family == rule.FamilyIPv6 {
		r.Elements = append(r.Elements, Element{Attrs: []Attr{{Key: "family", Value: p.Family.String()}}})
	}
	if src := rule.NormalizeSource(p.Source); src != rule.AnySource {
		r.Elements = append(r.Elements, Element{Name: "source", Attrs: []Attr{{Key: "address", Value: src}}})
	}
	r.Elements = append(r.Elements, Element{Name: "port", Attrs: []Attr{
		{Key: "port", Value: p.Port},
		{Key: "protocol", Value: p.Protocol},
	}})
	if p.LogPrefix != "" {
		r.Elements = append(r.Elements, Element{Name: "log", Attrs: []Attr{{Key: "prefix", Value: p.LogPrefix}}})
	}
	verdict := "reject"
	if p.Allow {
		verdict = "accept"
	}
	r.Elements = append(r.Elements, Element{Name: verdict, Flag: true})
	return r
}

func tokenize(text string) ([]string, error) {
	var b strings.Builder
	var quote rune
	for _, ch := range strings.TrimSpace(text) {
		switch {
		case quote != 0 && ch == quote:
			quote = 0
			b.WriteRune(ch)
		case quote != 0 && ch == ' ':
			b.WriteString(quotedSpace)
		case quote != 0 && ch == '\t':
			b.WriteString(quotedTab)
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	if quote != 0 {
		return nil, ErrUnclosedQuote
	}

	fields := strings.Fields(b.String())
	for i, f := range fields {
		fields[i] = whitespaceRestorer.Replace(f)
	}
	return fields, nil
}

var whitespaceRestorer = strings.NewReplacer(quotedSpace, " ", quotedTab, "\t")

// quoteValue wraps a value in double quotes, or in single quotes when the
// value itself holds a double quote.
func quoteValue(value string) string {
	if strings.Contains(value, `"`) && !strings.Contains(value, "'") {
		return "'" + value + "'"
	}
	return `"` + value + `"`
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
