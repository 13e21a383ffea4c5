//go:build linux
// +build linux

package firewalld

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	dbusInterface  = "org.fedoraproject.FirewallD1"
	dbusPath       = "/org/fedoraproject/FirewallD1"
	dbusConfigPath = "/org/fedoraproject/FirewallD1/config"
	dbusBusPath    = "/org/freedesktop/DBus"
	dbusBusName    = "org.freedesktop.DBus"
)

const dbusTimeout = 10 * time.Second

type APIVersion int

const (
	APIUnknown APIVersion = iota
	APIv1
	APIv2
)

func (v APIVersion) String() string {
	switch v {
	case APIv1:
		return "v1 (firewalld 0.x)"
	case APIv2:
		return "v2 (firewalld 1.x+)"
	default:
		return "unknown"
	}
}

// Client reads zones from firewalld over the system bus.
type Client struct {
	conn       *dbus.Conn
	obj        dbus.BusObject
	version    string
	apiVersion APIVersion
	readOnly   bool
}

func NewClient(ctx context.Context) (*Client, error) {
	slog.Debug("connecting to system bus")

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	client := &Client{
		conn: conn,
		obj:  conn.Object(dbusInterface, dbusPath),
	}

	var hasOwner bool
	busObj := conn.Object(dbusBusName, dbusBusPath)
	if err := client.callObject(ctx, busObj, "org.freedesktop.DBus.NameHasOwner", &hasOwner, dbusInterface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("check firewalld owner: %w", err)
	}
	if !hasOwner {
		conn.Close()
		return nil, ErrNotRunning
	}

	if err := client.detectVersion(ctx); err != nil {
		slog.Warn("version detection failed", "error", err)
		client.apiVersion = APIv2
	}

	if err := client.detectPermissions(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Version() string {
	return c.version
}

func (c *Client) APIVersion() APIVersion {
	return c.apiVersion
}

func (c *Client) ReadOnly() bool {
	return c.readOnly
}

func (c *Client) detectVersion(ctx context.Context) error {
	var v dbus.Variant
	if err := c.call(ctx, "org.freedesktop.DBus.Properties.Get", &v, dbusInterface, "version"); err != nil {
		return fmt.Errorf("read firewalld version: %w", err)
	}
	version, ok := v.Value().(string)
	if !ok || version == "" {
		return fmt.Errorf("invalid version value %T", v.Value())
	}

	c.version = version
	c.apiVersion = parseVersion(version)
	if c.apiVersion == APIUnknown {
		slog.Warn("unknown firewalld version, falling back to v2 API", "version", version)
		c.apiVersion = APIv2
	}
	slog.Info("firewalld detected", "version", version, "api", c.apiVersion)
	return nil
}

func parseVersion(version string) APIVersion {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(strings.TrimSpace(major))
	if err != nil {
		return APIUnknown
	}
	if n < 1 {
		return APIv1
	}
	return APIv2
}

// detectPermissions probes authorizeAll; a polkit refusal makes the client
// read-only rather than failing.
func (c *Client) detectPermissions(ctx context.Context) error {
	if err := c.call(ctx, dbusInterface+".authorizeAll", nil); err != nil {
		if isPermissionDenied(err) {
			c.readOnly = true
			slog.Warn("read-only mode enabled", "error", err)
			return nil
		}
		return err
	}
	c.readOnly = false
	return nil
}

func (c *Client) call(ctx context.Context, method string, out any, args ...any) error {
	return c.callObject(ctx, c.obj, method, out, args...)
}

func (c *Client) callObject(ctx context.Context, obj dbus.BusObject, method string, out any, args ...any) error {
	slog.Debug("dbus call", "method", method, "args", args)

	ctx, cancel := context.WithTimeout(ctx, dbusTimeout)
	defer cancel()

	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		slog.Error("dbus call failed", "method", method, "error", call.Err)
		return fmt.Errorf("dbus %s: %w", method, call.Err)
	}

	if out == nil {
		return nil
	}

	if err := call.Store(out); err != nil {
		slog.Error("dbus store failed", "method", method, "error", err)
		return fmt.Errorf("dbus store %s: %w", method, err)
	}

	return nil
}

// classify maps D-Bus failures onto the package sentinels.
func classify(zone string, err error) error {
	switch {
	case err == nil:
		return nil
	case isPermissionDenied(err):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case isInvalidZone(err):
		return fmt.Errorf("zone %q: %w", zone, ErrZoneNotFound)
	default:
		return err
	}
}
