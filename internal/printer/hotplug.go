package printer

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/logging"
)

// HotplugWatcher listens for udev add events of the configured printer and
// signals Wake so a reconnect backoff can end early.
type HotplugWatcher struct {
	logger  zerolog.Logger
	product *regexp.Regexp
	wake    chan struct{}

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func NewHotplugWatcher(vendor, product uint16, logger zerolog.Logger) *HotplugWatcher {
	return &HotplugWatcher{
		logger:  logging.Component(logger, "hotplug"),
		product: regexp.MustCompile(productPattern(vendor, product)),
		wake:    make(chan struct{}, 1),
	}
}

// The kernel formats PRODUCT as "%x/%x/%x" without zero padding.
func productPattern(vendor, product uint16) string {
	return fmt.Sprintf("^%x/%x/", vendor, product)
}

// Wake delivers at most one pending signal per burst of matching events.
func (w *HotplugWatcher) Wake() <-chan struct{} {
	if w == nil {
		return nil
	}
	return w.wake
}

// Start subscribes to kernel uevents. Failure to open the netlink socket is
// logged and leaves the watcher idle.
func (w *HotplugWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn().Err(err).Msg("failed to connect to netlink socket; reconnects will use the fixed delay")
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	go w.loop(ctx, conn, w.quit)

	w.logger.Info().Str("product", w.product.String()).Msg("hotplug watcher started")
	return nil
}

func (w *HotplugWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
	w.logger.Info().Msg("hotplug watcher stopped")
}

func (w *HotplugWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *HotplugWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, w.matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			w.handleEvent(ev)
		case err := <-errs:
			w.logger.Warn().Err(err).Msg("netlink monitor error")
		}
	}
}

// matcher accepts the printer's own usb add events and any new usblp node,
// which appears once the driver binds.
func (w *HotplugWatcher) matcher() netlink.Matcher {
	add := string(netlink.ADD)
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &add,
		Env: map[string]string{
			"SUBSYSTEM": "^usb$",
			"PRODUCT":   w.product.String(),
		},
	})
	rules.AddRule(netlink.RuleDefinition{
		Action: &add,
		Env: map[string]string{
			"SUBSYSTEM": "^usbmisc$",
			"DEVNAME":   "^usb/lp[0-9]+$",
		},
	})
	return rules
}

var lpDevname = regexp.MustCompile(`^usb/lp[0-9]+$`)

func (w *HotplugWatcher) matches(ev netlink.UEvent) bool {
	if ev.Action != netlink.ADD {
		return false
	}
	switch ev.Env["SUBSYSTEM"] {
	case "usb":
		return w.product.MatchString(ev.Env["PRODUCT"])
	case "usbmisc":
		return lpDevname.MatchString(ev.Env["DEVNAME"])
	}
	return false
}

func (w *HotplugWatcher) handleEvent(ev netlink.UEvent) {
	if !w.matches(ev) {
		return
	}
	w.logger.Debug().
		Str("action", string(ev.Action)).
		Str("kobj", ev.KObj).
		Msg("printer hotplug event")
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
