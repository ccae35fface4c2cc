package printing

import (
	"context"
	"testing"

	"github.com/spf13/afero"
)

func TestFileDiscoverer_NoCapability(t *testing.T) {
	fs := afero.NewMemMapFs()
	tests := []struct {
		name       string
		discoverer *FileDiscoverer
	}{
		{name: "usb", discoverer: NewUSBDiscoverer(fs, "", nil)},
		{name: "bluetooth", discoverer: NewBluetoothDiscoverer(fs, "", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := tt.discoverer.Discover(context.Background())
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if devices == nil || len(devices) != 0 {
				t.Errorf("Expected empty non-nil list, got %v", devices)
			}
		})
	}
}

func TestUSBDiscoverer_Discover(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/dev/usb/lp0", nil, 0o660)
	_ = afero.WriteFile(fs, "/dev/usb/lp1", nil, 0o660)
	_ = afero.WriteFile(fs, "/dev/usb/hiddev0", nil, 0o660)
	_ = afero.WriteFile(fs, "/sys/class/usbmisc/lp0/device/ieee1284_id",
		[]byte("MFG:EPSON;CMD:ESC/POS;MDL:TM-T20II;CLS:PRINTER;"), 0o444)

	devices, err := NewUSBDiscoverer(fs, "", nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d: %v", len(devices), devices)
	}

	if devices[0].ID != "usb:lp0" || devices[0].Name != "EPSON TM-T20II" {
		t.Errorf("Unexpected first device: %+v", devices[0])
	}
	if devices[1].ID != "usb:lp1" || devices[1].Name != "USB Printer" {
		t.Errorf("Unexpected second device: %+v", devices[1])
	}
	for _, d := range devices {
		if d.Type != DeviceTypeUSB || d.Status != StatusDisconnected {
			t.Errorf("Expected disconnected usb device, got %+v", d)
		}
	}
}

func TestBluetoothDiscoverer_StaticDevices(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/dev/rfcomm0", nil, 0o660)
	_ = afero.WriteFile(fs, "/dev/rfcomm1", nil, 0o660)

	static := []StaticDevice{
		{ID: "kiosk-printer", Name: "Booth Printer", Path: "/dev/rfcomm0"},
		{Path: "/dev/ttyS9"},
	}
	devices, err := NewBluetoothDiscoverer(fs, "", static).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	want := []PrinterDevice{
		{ID: "kiosk-printer", Name: "Booth Printer", Type: DeviceTypeBluetooth, Status: StatusDisconnected, Path: "/dev/rfcomm0"},
		{ID: "bluetooth:ttyS9", Name: "Bluetooth Printer", Type: DeviceTypeBluetooth, Status: StatusDisconnected, Path: "/dev/ttyS9"},
		{ID: "bluetooth:rfcomm1", Name: "Bluetooth Printer", Type: DeviceTypeBluetooth, Status: StatusDisconnected, Path: "/dev/rfcomm1"},
	}
	if len(devices) != len(want) {
		t.Fatalf("Expected %d devices, got %d: %v", len(want), len(devices), devices)
	}
	for i := range want {
		if devices[i] != want[i] {
			t.Errorf("device %d: expected %+v, got %+v", i, want[i], devices[i])
		}
	}
}

func TestFileDiscoverer_Open(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/dev/usb/lp0", nil, 0o660)
	d := NewUSBDiscoverer(fs, "", nil)

	w, err := d.Open(context.Background(), PrinterDevice{Path: "/dev/usb/lp0"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := w.Write([]byte{0x1B, 0x40}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = w.Close()

	written, _ := afero.ReadFile(fs, "/dev/usb/lp0")
	if len(written) != 2 {
		t.Errorf("Expected 2 bytes written, got %d", len(written))
	}

	if _, err := d.Open(context.Background(), PrinterDevice{Path: "/dev/usb/lp7"}); err == nil {
		t.Error("Expected error opening missing node")
	}
}

func TestParseIEEE1284(t *testing.T) {
	fields := parseIEEE1284("MANUFACTURER:Star;MODEL:TSP100; CLS:PRINTER;junk")
	if fields["MANUFACTURER"] != "Star" || fields["MODEL"] != "TSP100" || fields["CLS"] != "PRINTER" {
		t.Errorf("Unexpected fields: %v", fields)
	}
	if _, ok := fields["JUNK"]; ok {
		t.Error("Expected entries without a colon to be skipped")
	}
}
