package printer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/receiptme/receiptd/internal/receipt"
)

type failingWriter struct {
	err    error
	closed bool
}

func (w *failingWriter) Write(p []byte) (int, error) {
	return 0, w.err
}

func (w *failingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleBlocks() []receipt.Block {
	return []receipt.Block{receipt.Text(receipt.Normal, "hello\n"), receipt.Cut()}
}

func TestConnectAndPrintToDeviceFile(t *testing.T) {
	devPath := filepath.Join(t.TempDir(), "lp0")
	require.NoError(t, os.WriteFile(devPath, nil, 0o644))

	p := NewUSBPrinter(Options{VendorID: 0x0fe6, ProductID: 0x811e, DevicePath: devPath}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.Connect(ctx), "connect must be idempotent")
	assert.True(t, p.Connected())

	require.NoError(t, p.Print(ctx, sampleBlocks()))
	require.NoError(t, p.Disconnect())
	require.NoError(t, p.Disconnect())
	assert.False(t, p.Connected())

	written, err := os.ReadFile(devPath)
	require.NoError(t, err)
	assert.Equal(t, Encode(sampleBlocks()), written)
}

func TestConnectDiscoversDevice(t *testing.T) {
	root := t.TempDir()
	sysfs := filepath.Join(root, "sys")
	dev := filepath.Join(root, "dev")
	writeUSBDevice(t, sysfs, "1-3", "0fe6", "811e", "lp0")
	require.NoError(t, os.MkdirAll(filepath.Join(dev, "usb"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dev, "usb", "lp0"), nil, 0o644))

	p := NewUSBPrinter(Options{VendorID: 0x0fe6, ProductID: 0x811e, SysfsRoot: sysfs, DevRoot: dev}, zerolog.Nop())
	require.NoError(t, p.Connect(context.Background()))
	assert.True(t, p.Connected())
}

func TestConnectFailuresAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing node", unix.ENOENT, ErrNotFound},
		{"no permission", unix.EACCES, ErrPermissionDenied},
		{"busy", unix.EBUSY, ErrDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewUSBPrinter(Options{DevicePath: "/dev/usb/lp0"}, zerolog.Nop(),
				WithOpener(func(path string) (io.WriteCloser, error) {
					return nil, &os.PathError{Op: "open", Path: path, Err: tt.err}
				}))

			for i := 0; i < 3; i++ {
				err := p.Connect(context.Background())
				assert.ErrorIs(t, err, tt.want)
			}
			assert.False(t, p.Connected())
		})
	}
}

func TestConnectWithoutDeviceReportsNotFound(t *testing.T) {
	p := NewUSBPrinter(Options{VendorID: 1, ProductID: 2, SysfsRoot: t.TempDir()}, zerolog.Nop())
	err := p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsPermanent(err))
}

func TestPrintWhenNotConnected(t *testing.T) {
	p := NewUSBPrinter(Options{DevicePath: "/dev/usb/lp0"}, zerolog.Nop())
	assert.ErrorIs(t, p.Print(context.Background(), sampleBlocks()), ErrNotConnected)
}

func TestPrintDisconnectDropsHandle(t *testing.T) {
	w := &failingWriter{err: &os.PathError{Op: "write", Path: "/dev/usb/lp0", Err: unix.ENODEV}}
	p := NewUSBPrinter(Options{DevicePath: "/dev/usb/lp0"}, zerolog.Nop(),
		WithOpener(func(string) (io.WriteCloser, error) { return w, nil }))
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx))
	err := p.Print(ctx, sampleBlocks())
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.True(t, w.closed)
	assert.False(t, p.Connected())
	assert.ErrorIs(t, p.Print(ctx, sampleBlocks()), ErrNotConnected)
}

func TestPrintDeviceErrorKeepsHandle(t *testing.T) {
	w := &failingWriter{err: errors.New("out of paper")}
	p := NewUSBPrinter(Options{DevicePath: "/dev/usb/lp0"}, zerolog.Nop(),
		WithOpener(func(string) (io.WriteCloser, error) { return w, nil }))
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx))
	err := p.Print(ctx, sampleBlocks())
	assert.ErrorIs(t, err, ErrDevice)
	assert.False(t, IsPermanent(err))
	assert.True(t, p.Connected())
}
