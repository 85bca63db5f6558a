package printer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Locate finds the usblp character device of the USB printer with the given
// vendor and product ids by walking sysfs. It returns ErrNotFound when no
// attached device matches or the usblp driver is not bound to it.
func Locate(sysfsRoot, devRoot string, vendor, product uint16) (string, error) {
	devicesDir := filepath.Join(sysfsRoot, "bus", "usb", "devices")
	entries, err := os.ReadDir(devicesDir)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read %s: %v", ErrNotFound, devicesDir, err)
	}

	matched := false
	for _, entry := range entries {
		dir := filepath.Join(devicesDir, entry.Name())
		v, err := readHexID(filepath.Join(dir, "idVendor"))
		if err != nil || v != vendor {
			continue
		}
		p, err := readHexID(filepath.Join(dir, "idProduct"))
		if err != nil || p != product {
			continue
		}
		matched = true

		nodes, _ := filepath.Glob(filepath.Join(dir, "*", "usbmisc", "lp*"))
		if len(nodes) == 0 {
			continue
		}
		sort.Strings(nodes)
		return filepath.Join(devRoot, "usb", filepath.Base(nodes[0])), nil
	}

	if matched {
		return "", fmt.Errorf("%w: %04x:%04x attached but has no usblp interface", ErrNotFound, vendor, product)
	}
	return "", fmt.Errorf("%w: no USB device %04x:%04x", ErrNotFound, vendor, product)
}

func readHexID(path string) (uint16, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(id), nil
}
