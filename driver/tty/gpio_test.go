//go:build linux && !tinygo

package tty

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGPIOLine(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "gpio15")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	line, err := openGPIO(root, 15)
	if err != nil {
		t.Fatalf("openGPIO() error = %v", err)
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "direction")); string(b) != "in" {
		t.Errorf("direction = %q, want in", b)
	}

	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{value: "1\n", want: true},
		{value: "0\n", want: false},
		{value: "x\n", wantErr: true},
	}
	for _, tt := range tests {
		if err := os.WriteFile(filepath.Join(dir, "value"), []byte(tt.value), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := line.high()
		if (err != nil) != tt.wantErr {
			t.Errorf("high() with %q error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("high() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGPIOExport(t *testing.T) {
	root := t.TempDir()

	// without the kernel nothing creates gpio7/, so setting direction fails
	// after the export write
	if _, err := openGPIO(root, 7); err == nil {
		t.Fatalf("openGPIO() error = nil, want direction failure")
	}
	b, err := os.ReadFile(filepath.Join(root, "export"))
	if err != nil {
		t.Fatalf("export not written: %v", err)
	}
	if string(b) != "7" {
		t.Errorf("export = %q, want 7", b)
	}
}

func TestLineIdleWithoutGPIO(t *testing.T) {
	d := &Driver{}
	if !d.LineIdle() {
		t.Errorf("LineIdle() = false with no gpio configured")
	}
	if !d.RxEmpty() {
		t.Errorf("RxEmpty() = false with no probe descriptor")
	}
	if !d.ClearToSend() {
		t.Errorf("ClearToSend() = false without flow control")
	}
}
