package apply

import (
	"fmt"
	"strings"

	"fwagent/internal/rule"
)

type Operation int

const (
	Insert Operation = iota
	Delete
)

func (o Operation) String() string {
	switch o {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert", "add":
		return Insert, nil
	case "delete", "remove":
		return Delete, nil
	default:
		return Insert, fmt.Errorf("unknown operation %q", s)
	}
}

// Atomic is one backend operation on a single port, protocol and family.
type Atomic struct {
	Rule rule.Rule
	Op   Operation
}

func (a Atomic) String() string {
	return a.Op.String() + " " + a.Rule.String()
}

// Decompose expands a compound rule into atomic operations in
// port, protocol, family order.
func Decompose(r rule.Rule, op Operation) []Atomic {
	rules := rule.Explode(r)
	out := make([]Atomic, 0, len(rules))
	for _, atom := range rules {
		out = append(out, Atomic{Rule: atom, Op: op})
	}
	return out
}
