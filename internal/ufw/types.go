package ufw

import (
	"errors"
	"time"
)

const program = "ufw"

const (
	DefaultQueryTimeout  = 10 * time.Second
	DefaultMutateTimeout = 30 * time.Second
)

var (
	ErrInactive         = errors.New("ufw is not active")
	ErrNoSuchRuleNumber = errors.New("no rule with that number")
)
