package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const (
	DefaultUSBPattern       = "/dev/usb/lp*"
	DefaultBluetoothPattern = "/dev/rfcomm*"

	// usblp exposes the IEEE 1284 device id of the attached printer here
	usbIDPathFormat = "/sys/class/usbmisc/%s/device/ieee1284_id"
)

// Discoverer finds devices of one transport family and opens handles to them
type Discoverer interface {
	Type() DeviceType
	Discover(ctx context.Context) ([]PrinterDevice, error)
	Open(ctx context.Context, device PrinterDevice) (io.WriteCloser, error)
}

// FileDiscoverer finds printers exposed as character devices matching a glob
type FileDiscoverer struct {
	fs          afero.Fs
	deviceType  DeviceType
	pattern     string
	defaultName string
	static      []StaticDevice
	nameLookup  func(fs afero.Fs, node string) string
}

// NewUSBDiscoverer discovers usblp printers; pattern defaults to /dev/usb/lp*
func NewUSBDiscoverer(fs afero.Fs, pattern string, static []StaticDevice) *FileDiscoverer {
	if pattern == "" {
		pattern = DefaultUSBPattern
	}
	return &FileDiscoverer{
		fs:          fs,
		deviceType:  DeviceTypeUSB,
		pattern:     pattern,
		defaultName: "USB Printer",
		static:      static,
		nameLookup:  usbProductName,
	}
}

// NewBluetoothDiscoverer discovers printers bound to RFCOMM serial nodes; pattern defaults to /dev/rfcomm*
func NewBluetoothDiscoverer(fs afero.Fs, pattern string, static []StaticDevice) *FileDiscoverer {
	if pattern == "" {
		pattern = DefaultBluetoothPattern
	}
	return &FileDiscoverer{
		fs:          fs,
		deviceType:  DeviceTypeBluetooth,
		pattern:     pattern,
		defaultName: "Bluetooth Printer",
		static:      static,
	}
}

func (d *FileDiscoverer) Type() DeviceType {
	return d.deviceType
}

// Discover lists configured devices followed by matching device nodes.
// A missing device directory yields an empty list.
func (d *FileDiscoverer) Discover(ctx context.Context) ([]PrinterDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices := make([]PrinterDevice, 0, len(d.static))
	seen := make(map[string]bool)
	for _, s := range d.static {
		id := s.ID
		if id == "" {
			id = d.idFor(s.Path)
		}
		name := s.Name
		if name == "" {
			name = d.defaultName
		}
		devices = append(devices, PrinterDevice{
			ID:     id,
			Name:   name,
			Type:   d.deviceType,
			Status: StatusDisconnected,
			Path:   s.Path,
		})
		seen[s.Path] = true
	}

	matches, err := afero.Glob(d.fs, d.pattern)
	if err != nil {
		return devices, fmt.Errorf("failed to glob %s: %w", d.pattern, err)
	}
	for _, node := range matches {
		if seen[node] {
			continue
		}
		name := d.defaultName
		if d.nameLookup != nil {
			if found := d.nameLookup(d.fs, node); found != "" {
				name = found
			}
		}
		devices = append(devices, PrinterDevice{
			ID:     d.idFor(node),
			Name:   name,
			Type:   d.deviceType,
			Status: StatusDisconnected,
			Path:   node,
		})
	}
	return devices, nil
}

// Open opens the device node write-only
func (d *FileDiscoverer) Open(ctx context.Context, device PrinterDevice) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := d.fs.OpenFile(device.Path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device.Path, err)
	}
	return f, nil
}

func (d *FileDiscoverer) idFor(node string) string {
	return fmt.Sprintf("%s:%s", d.deviceType, path.Base(node))
}

// usbProductName builds "<manufacturer> <model>" from the IEEE 1284 id
func usbProductName(fs afero.Fs, node string) string {
	raw, err := afero.ReadFile(fs, fmt.Sprintf(usbIDPathFormat, path.Base(node)))
	if err != nil {
		return ""
	}
	fields := parseIEEE1284(string(raw))
	manufacturer := firstNonEmpty(fields["MFG"], fields["MANUFACTURER"])
	model := firstNonEmpty(fields["MDL"], fields["MODEL"])
	return strings.TrimSpace(manufacturer + " " + model)
}

func parseIEEE1284(id string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(id, ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
