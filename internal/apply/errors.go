package apply

import (
	"fmt"
	"strings"
)

// BatchError reports a batch that stopped at its first failure. Operations
// in Applied were carried out and stay in effect.
type BatchError struct {
	Applied []Atomic
	// Failed is nil when every operation succeeded and the reload failed.
	Failed *Atomic
	Err    error
}

func (e *BatchError) Error() string {
	var b strings.Builder
	if e.Failed != nil {
		fmt.Fprintf(&b, "%s failed", e.Failed)
	} else {
		b.WriteString("reload failed")
	}
	if len(e.Applied) > 0 {
		fmt.Fprintf(&b, " after %d applied operation(s)", len(e.Applied))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
