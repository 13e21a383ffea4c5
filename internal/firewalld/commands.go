package firewalld

import "strings"

const Program = "firewall-cmd"

// PortArgv builds a port mutation or query. action is add, remove or query.
func PortArgv(action, zone string, port Port, permanent bool) []string {
	argv := base(zone, permanent)
	return append(argv, "--"+action+"-port="+port.Port+"/"+strings.ToLower(port.Protocol))
}

// RichRuleArgv builds a rich rule mutation or query. action is add, remove or query.
func RichRuleArgv(action, zone, text string, permanent bool) []string {
	argv := base(zone, permanent)
	return append(argv, "--"+action+"-rich-rule="+text)
}

func ListRichRulesArgv(zone string, permanent bool) []string {
	return append(base(zone, permanent), "--list-rich-rules")
}

func NewZoneArgv(zone string) []string {
	return []string{Program, "--permanent", "--new-zone=" + zone}
}

func ReloadArgv() []string {
	return []string{Program, "--reload"}
}

func base(zone string, permanent bool) []string {
	argv := []string{Program}
	if permanent {
		argv = append(argv, "--permanent")
	}
	if zone != "" {
		argv = append(argv, "--zone="+zone)
	}
	return argv
}

// IsIdempotentCode reports whether a firewall-cmd exit code means the
// requested state already holds.
func IsIdempotentCode(code int) bool {
	for _, c := range IdempotentCodes {
		if c == code {
			return true
		}
	}
	return false
}
