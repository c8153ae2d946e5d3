//go:build linux && !tinygo

package tty

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// gpioLine reads one input pin through sysfs.
type gpioLine struct {
	pin   int
	value string
}

// openGPIO exports pin if needed, makes it an input and returns a reader for
// its value file.
func openGPIO(root string, pin int) (*gpioLine, error) {
	dir := filepath.Join(root, "gpio"+strconv.Itoa(pin))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, fmt.Errorf("failed to export gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to set gpio %d direction: %w", pin, err)
	}
	return &gpioLine{pin: pin, value: filepath.Join(dir, "value")}, nil
}

// high reports whether the pin reads 1.
func (g *gpioLine) high() (bool, error) {
	b, err := os.ReadFile(g.value)
	if err != nil {
		return false, fmt.Errorf("failed to read gpio %d: %w", g.pin, err)
	}
	switch string(bytes.TrimSpace(b)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("gpio %d: unexpected value %q", g.pin, b)
}
