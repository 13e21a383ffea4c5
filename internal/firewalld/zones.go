//go:build linux
// +build linux

package firewalld

import (
	"context"
	"log/slog"
)

// ListZones returns the runtime zone names.
func (c *Client) ListZones(ctx context.Context) ([]string, error) {
	method := dbusInterface + ".zone.getZones"
	if c.apiVersion == APIv1 {
		method = dbusInterface + ".getZones"
	}

	var zones []string
	if err := c.call(ctx, method, &zones); err != nil {
		return nil, classify("", err)
	}

	slog.Debug("zones listed", "count", len(zones), "zones", zones)
	return zones, nil
}

func (c *Client) DefaultZone(ctx context.Context) (string, error) {
	var zone string
	if err := c.call(ctx, dbusInterface+".getDefaultZone", &zone); err != nil {
		return "", classify("", err)
	}
	return zone, nil
}

// GetPorts lists the zone's plain port entries. The permanent view comes
// from the zone's configuration object.
func (c *Client) GetPorts(ctx context.Context, zone string, permanent bool) ([]Port, error) {
	if permanent {
		z, err := c.GetZoneSettings(ctx, zone, true)
		if err != nil {
			return nil, err
		}
		return z.Ports, nil
	}

	var raw [][]string
	if err := c.call(ctx, dbusInterface+".zone.getPorts", &raw, zone); err != nil {
		return nil, classify(zone, err)
	}
	ports, err := parsePortTuples(raw)
	if err != nil {
		return nil, err
	}
	slog.Debug("ports listed", "zone", zone, "permanent", false, "count", len(ports))
	return ports, nil
}

func (c *Client) GetRichRules(ctx context.Context, zone string, permanent bool) ([]string, error) {
	if permanent {
		z, err := c.GetZoneSettings(ctx, zone, true)
		if err != nil {
			return nil, err
		}
		return z.RichRules, nil
	}

	var rules []string
	if err := c.call(ctx, dbusInterface+".zone.getRichRules", &rules, zone); err != nil {
		return nil, classify(zone, err)
	}
	slog.Debug("rich rules listed", "zone", zone, "permanent", false, "count", len(rules))
	return rules, nil
}

func (c *Client) QueryPort(ctx context.Context, zone string, port Port, permanent bool) (bool, error) {
	var open bool
	if permanent {
		obj, err := c.getConfigZoneObject(ctx, zone)
		if err != nil {
			return false, err
		}
		if err := c.callObject(ctx, obj, dbusInterface+".config.zone.queryPort", &open, port.Port, port.Protocol); err != nil {
			return false, classify(zone, err)
		}
		return open, nil
	}
	if err := c.call(ctx, dbusInterface+".zone.queryPort", &open, zone, port.Port, port.Protocol); err != nil {
		return false, classify(zone, err)
	}
	return open, nil
}
