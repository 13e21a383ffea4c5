package firewalld

import (
	"context"
	"errors"
)

type Port struct {
	Port     string
	Protocol string
}

func (p Port) String() string {
	return p.Port + "/" + p.Protocol
}

type Zone struct {
	Name        string
	Ports       []Port
	RichRules   []string
	Services    []string
	Interfaces  []string
	Sources     []string
	Masquerade  bool
	Target      string
	Short       string
	Description string
}

// ZoneReader lists what a zone contains, at runtime or in the permanent
// configuration.
type ZoneReader interface {
	ListZones(ctx context.Context) ([]string, error)
	DefaultZone(ctx context.Context) (string, error)
	GetPorts(ctx context.Context, zone string, permanent bool) ([]Port, error)
	GetRichRules(ctx context.Context, zone string, permanent bool) ([]string, error)
}

// PortQuerier asks the daemon whether a single port is open.
type PortQuerier interface {
	QueryPort(ctx context.Context, zone string, port Port, permanent bool) (bool, error)
}

// SignalEvent is a firewalld change notification, e.g. Reloaded or
// PortAdded with the zone it concerns.
type SignalEvent struct {
	Name string
	Zone string
}

// firewall-cmd exit codes.
const (
	ExitAlreadyEnabled = 11
	ExitNotEnabled     = 12
	ExitZoneAlreadySet = 16
	ExitAlreadySet     = 34
	ExitInvalidZone    = 112
	ExitNotRunning     = 252
)

// IdempotentCodes are exit codes meaning the requested state already holds.
var IdempotentCodes = []int{ExitAlreadyEnabled, ExitNotEnabled, ExitZoneAlreadySet, ExitAlreadySet}

var (
	ErrNotRunning       = errors.New("firewalld service is not running")
	ErrPermissionDenied = errors.New("permission denied (try sudo)")
	ErrUnsupportedAPI   = errors.New("firewalld version not supported")
	ErrZoneNotFound     = errors.New("zone does not exist")
)
