package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	cmd := Command{Argv: []string{"firewall-cmd", "--add-port=80/tcp"}}

	tests := []struct {
		name     string
		code     int
		accepted []int
		wantErr  bool
	}{
		{name: "success", code: 0},
		{name: "accepted code", code: 11, accepted: []int{11, 12}},
		{name: "rejected code", code: 252, accepted: []int{11, 12}, wantErr: true},
		{name: "no accepted codes", code: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(cmd, Result{ExitCode: tt.code, Stderr: "boom"}, tt.accepted...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExitErrorCarriesOutput(t *testing.T) {
	cmd := Command{Argv: []string{"ufw", "allow", "80/tcp"}}
	err := Check(cmd, Result{ExitCode: 1, Stdout: "out", Stderr: "ERROR: bad port"})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Check() error = %T, want *ExitError", err)
	}
	if exitErr.ExitCode != 1 || exitErr.Stdout != "out" || exitErr.Stderr != "ERROR: bad port" {
		t.Fatalf("ExitError = %#v, unexpected", exitErr)
	}
	if !strings.Contains(err.Error(), "ufw allow 80/tcp") || !strings.Contains(err.Error(), "ERROR: bad port") {
		t.Fatalf("Error() = %q, want command and stderr", err.Error())
	}
}

func TestExitErrorFallsBackToStdout(t *testing.T) {
	err := &ExitError{Command: "ufw", ExitCode: 2, Stdout: "only stdout"}
	if got := err.Error(); got != "ufw: exit status 2: only stdout" {
		t.Fatalf("Error() = %q", got)
	}
	err = &ExitError{Command: "ufw", ExitCode: 2}
	if got := err.Error(); got != "ufw: exit status 2" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestOutput(t *testing.T) {
	m := &MockExecutor{}
	m.On("ufw", "status").Return(Result{Stdout: "Status: active\n"}, nil).Once()
	m.On("ufw", "bogus").Return(Result{ExitCode: 1, Stderr: "ERROR"}, nil).Once()

	out, err := Output(context.Background(), m, Command{Argv: []string{"ufw", "status"}})
	if err != nil || out != "Status: active\n" {
		t.Fatalf("Output() = %q, %v", out, err)
	}
	if _, err := Output(context.Background(), m, Command{Argv: []string{"ufw", "bogus"}}); err == nil {
		t.Fatalf("Output() error = nil, want exit error")
	}
	m.AssertExpectations(t)
}

func TestCommandString(t *testing.T) {
	if got := (Command{Shell: "ufw status | head"}).String(); got != "ufw status | head" {
		t.Fatalf("String() = %q", got)
	}
	if got := (Command{Argv: []string{"ufw", "status"}}).String(); got != "ufw status" {
		t.Fatalf("String() = %q", got)
	}
}
