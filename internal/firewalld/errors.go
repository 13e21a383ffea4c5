package firewalld

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

func isPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	var dbusErr *dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.AccessDenied",
			"org.fedoraproject.FirewallD1.AccessDenied",
			"org.fedoraproject.FirewallD1.NotAuthorized",
			"org.fedoraproject.FirewallD1.Error.AccessDenied",
			"org.fedoraproject.FirewallD1.Error.NotAuthorized":
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "accessdenied") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "not authorized") ||
		strings.Contains(msg, "notauthorized")
}

// firewalld reports its own failures as org.fedoraproject.FirewallD1.Exception
// with the error code name leading the message, e.g. "INVALID_ZONE: foo".
func firewalldErrorCode(err error) string {
	var dbusErr *dbus.Error
	if !errors.As(err, &dbusErr) {
		return ""
	}
	msg := dbusErr.Error()
	code, _, _ := strings.Cut(msg, ":")
	return strings.TrimSpace(code)
}

func isInvalidZone(err error) bool {
	if err == nil {
		return false
	}
	if firewalldErrorCode(err) == "INVALID_ZONE" {
		return true
	}
	var dbusErr *dbus.Error
	if errors.As(err, &dbusErr) && strings.HasSuffix(dbusErr.Name, "INVALID_ZONE") {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid zone") || strings.Contains(msg, "invalid_zone")
}
