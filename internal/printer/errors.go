package printer

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrNotFound         = errors.New("printer not found")
	ErrPermissionDenied = errors.New("permission denied accessing printer")
	ErrDisconnected     = errors.New("printer disconnected")
	ErrDevice           = errors.New("printer device error")
	ErrNotConnected     = errors.New("printer not connected")
)

// IsPermanent reports whether err needs an operator to fix hardware or
// permissions before a reconnect can succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, path, err)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %s busy: %v", ErrDisconnected, path, err)
	default:
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
}

func classifyWriteError(err error) error {
	switch {
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO),
		errors.Is(err, unix.EIO), errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.ESHUTDOWN), errors.Is(err, os.ErrClosed):
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	default:
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
