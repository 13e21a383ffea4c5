package executor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExecutor is a testify mock keyed on the command line: the method name
// is the program and the arguments are the rest of argv. Shell commands are
// keyed as "sh", "-c", script.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	var args []string
	if cmd.Shell != "" {
		args = []string{"-c", cmd.Shell}
	} else if len(cmd.Argv) > 1 {
		args = cmd.Argv[1:]
	}
	callArgs := make([]interface{}, 0, len(args))
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.MethodCalled(cmd.program(), callArgs...)
	res, _ := result.Get(0).(Result)
	return res, result.Error(1)
}
