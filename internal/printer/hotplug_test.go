package printer

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestProductPattern(t *testing.T) {
	assert.Equal(t, "^fe6/811e/", productPattern(0x0fe6, 0x811e))
}

func TestHotplugMatches(t *testing.T) {
	w := NewHotplugWatcher(0x0fe6, 0x811e, zerolog.Nop())

	tests := []struct {
		name string
		ev   netlink.UEvent
		want bool
	}{
		{
			name: "printer added",
			ev:   netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usb", "PRODUCT": "fe6/811e/100"}},
			want: true,
		},
		{
			name: "usblp node added",
			ev:   netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usbmisc", "DEVNAME": "usb/lp0"}},
			want: true,
		},
		{
			name: "printer removed",
			ev:   netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "usb", "PRODUCT": "fe6/811e/100"}},
		},
		{
			name: "other device",
			ev:   netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usb", "PRODUCT": "46d/c52b/1200"}},
		},
		{
			name: "product prefix only",
			ev:   netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usb", "PRODUCT": "fe6/811ef/1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.matches(tt.ev))
		})
	}
}

func TestHotplugWakeCoalesces(t *testing.T) {
	w := NewHotplugWatcher(0x0fe6, 0x811e, zerolog.Nop())
	ev := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "usb", "PRODUCT": "fe6/811e/100"}}

	w.handleEvent(ev)
	w.handleEvent(ev)

	select {
	case <-w.Wake():
	default:
		t.Fatal("expected a wake signal")
	}
	select {
	case <-w.Wake():
		t.Fatal("expected signals to coalesce")
	default:
	}
}

func TestHotplugNilWatcherIsSafe(t *testing.T) {
	var w *HotplugWatcher
	assert.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.False(t, w.Running())
	assert.Nil(t, w.Wake())
}
