package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/receiptme/receiptd/internal/logging"
	"github.com/receiptme/receiptd/internal/receipt"
)

type Options struct {
	VendorID  uint16
	ProductID uint16
	// DevicePath skips sysfs discovery when set.
	DevicePath string
	SysfsRoot  string
	DevRoot    string
}

type opener func(path string) (io.WriteCloser, error)

// USBPrinter is an ESC/POS receipt printer attached through the kernel usblp
// driver.
type USBPrinter struct {
	opts   Options
	logger zerolog.Logger
	open   opener

	mu   sync.Mutex
	conn io.WriteCloser
	path string
}

type Option func(*USBPrinter)

// WithOpener replaces the device open call, for tests.
func WithOpener(open func(path string) (io.WriteCloser, error)) Option {
	return func(p *USBPrinter) { p.open = open }
}

func NewUSBPrinter(opts Options, logger zerolog.Logger, options ...Option) *USBPrinter {
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = "/sys"
	}
	if opts.DevRoot == "" {
		opts.DevRoot = "/dev"
	}
	p := &USBPrinter{
		opts:   opts,
		logger: logging.Component(logger, "printer"),
		open:   openDevice,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

func openDevice(path string) (io.WriteCloser, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// Connect opens the printer. It is a no-op while already connected and safe
// to call repeatedly while the printer is absent.
func (p *USBPrinter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return nil
	}

	path := p.opts.DevicePath
	if path == "" {
		located, err := Locate(p.opts.SysfsRoot, p.opts.DevRoot, p.opts.VendorID, p.opts.ProductID)
		if err != nil {
			return err
		}
		path = located
	}

	conn, err := p.open(path)
	if err != nil {
		return classifyOpenError(path, err)
	}

	p.conn = conn
	p.path = path
	p.logger.Info().
		Str("device", path).
		Str("usb_id", fmt.Sprintf("%04x:%04x", p.opts.VendorID, p.opts.ProductID)).
		Msg("printer connected")
	return nil
}

// Print encodes blocks and writes them in one stream ending with the cut. Any
// failure fails the whole receipt. A disconnect drops the handle so the next
// Connect reopens the device.
func (p *USBPrinter) Print(ctx context.Context, blocks []receipt.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return ErrNotConnected
	}

	data := Encode(blocks)
	n, err := p.conn.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err == nil {
		return nil
	}

	perr := classifyWriteError(err)
	p.logger.Debug().Err(err).Int("written", n).Int("total", len(data)).Msg("printer write failed")
	if isDisconnect(perr) {
		p.closeLocked()
	}
	return perr
}

// Disconnect releases the device handle. Safe to call when not connected.
func (p *USBPrinter) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *USBPrinter) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *USBPrinter) closeLocked() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.logger.Info().Str("device", p.path).Msg("printer disconnected")
	p.path = ""
	return err
}
