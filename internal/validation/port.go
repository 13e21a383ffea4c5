package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	minPort = 1
	maxPort = 65535
)

var (
	ErrPortEmpty       = errors.New("port cannot be empty")
	ErrProtocolEmpty   = errors.New("protocol cannot be empty")
	ErrPortOutOfRange  = errors.New("port out of range (1-65535)")
	ErrPortRangeOrder  = errors.New("port range start is greater than end")
	ErrUnknownProtocol = errors.New("unsupported protocol")
)

var knownProtocols = map[string]struct{}{
	"tcp":  {},
	"udp":  {},
	"sctp": {},
	"dccp": {},
}

// ValidatePortToken accepts a single port, a range (80-90 or 80:90), or a
// comma-joined list of either.
func ValidatePortToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrPortEmpty
	}
	for _, part := range strings.Split(token, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return ErrPortEmpty
		}
		if err := validatePortItem(part); err != nil {
			return fmt.Errorf("port %q: %w", part, err)
		}
	}
	return nil
}

// ValidateProtocolToken accepts a protocol or a slash-joined list (tcp/udp).
func ValidateProtocolToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrProtocolEmpty
	}
	for _, part := range strings.Split(token, "/") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			return ErrProtocolEmpty
		}
		if _, ok := knownProtocols[part]; !ok {
			return fmt.Errorf("protocol %q: %w", part, ErrUnknownProtocol)
		}
	}
	return nil
}

// IsNumericPort reports whether s is a bare port number or numeric range,
// without protocol suffix.
func IsNumericPort(s string) bool {
	if s == "" {
		return false
	}
	return validatePortItem(s) == nil
}

func validatePortItem(item string) error {
	start, end, isRange := splitRange(item)
	lo, err := parsePort(start)
	if err != nil {
		return err
	}
	if !isRange {
		return nil
	}
	hi, err := parsePort(end)
	if err != nil {
		return err
	}
	if lo > hi {
		return ErrPortRangeOrder
	}
	return nil
}

func splitRange(item string) (string, string, bool) {
	if start, end, ok := strings.Cut(item, "-"); ok {
		return start, end, true
	}
	if start, end, ok := strings.Cut(item, ":"); ok {
		return start, end, true
	}
	return item, "", false
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, ErrPortEmpty
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid port number %q", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q", s)
	}
	if n < minPort || n > maxPort {
		return 0, ErrPortOutOfRange
	}
	return n, nil
}
