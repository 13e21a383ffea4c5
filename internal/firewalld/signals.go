//go:build linux
// +build linux

package firewalld

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// SubscribeSignals delivers firewalld signals until the returned cancel
// function is called.
func (c *Client) SubscribeSignals(ctx context.Context) (<-chan SignalEvent, func(), error) {
	if c.conn == nil {
		return nil, nil, fmt.Errorf("dbus connection not initialized")
	}

	match := "type='signal',sender='" + dbusInterface + "'"
	slog.Debug("dbus add match", "rule", match)
	if err := c.callObject(ctx, c.conn.BusObject(), "org.freedesktop.DBus.AddMatch", nil, match); err != nil {
		return nil, nil, err
	}

	raw := make(chan *dbus.Signal, 16)
	out := make(chan SignalEvent, 16)
	done := make(chan struct{})
	c.conn.Signal(raw)

	go func() {
		defer close(out)
		for {
			select {
			case sig := <-raw:
				if sig == nil {
					return
				}
				select {
				case out <- toSignalEvent(sig):
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	cancel := idempotentCancel(func() {
		close(done)
		c.conn.RemoveSignal(raw)
		slog.Debug("dbus remove match", "rule", match)
		_ = c.callObject(context.Background(), c.conn.BusObject(), "org.freedesktop.DBus.RemoveMatch", nil, match)
	})

	return out, cancel, nil
}

func toSignalEvent(sig *dbus.Signal) SignalEvent {
	name := sig.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	event := SignalEvent{Name: name}
	if len(sig.Body) > 0 {
		if zone, ok := sig.Body[0].(string); ok {
			event.Zone = zone
		}
	}
	return event
}

func idempotentCancel(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(fn)
	}
}
