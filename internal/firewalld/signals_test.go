//go:build linux
// +build linux

package firewalld

import (
	"sync/atomic"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestIdempotentCancel(t *testing.T) {
	var called int32
	cancel := idempotentCancel(func() {
		atomic.AddInt32(&called, 1)
	})

	cancel()
	cancel()
	cancel()

	if got := atomic.LoadInt32(&called); got != 1 {
		t.Fatalf("cancel callback called %d times, want 1", got)
	}
}

func TestToSignalEvent(t *testing.T) {
	got := toSignalEvent(&dbus.Signal{
		Name: "org.fedoraproject.FirewallD1.zone.PortAdded",
		Body: []interface{}{"public", "80", "tcp", int32(0)},
	})
	if got.Name != "PortAdded" || got.Zone != "public" {
		t.Fatalf("toSignalEvent() = %+v, want PortAdded/public", got)
	}

	got = toSignalEvent(&dbus.Signal{Name: "org.fedoraproject.FirewallD1.Reloaded"})
	if got.Name != "Reloaded" || got.Zone != "" {
		t.Fatalf("toSignalEvent() = %+v, want Reloaded", got)
	}
}
