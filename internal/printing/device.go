package printing

import "errors"

type DeviceType string

const (
	DeviceTypeUSB       DeviceType = "usb"
	DeviceTypeBluetooth DeviceType = "bluetooth"
)

type DeviceStatus string

const (
	StatusDisconnected DeviceStatus = "disconnected"
	StatusConnecting   DeviceStatus = "connecting"
	StatusConnected    DeviceStatus = "connected"
)

var (
	ErrDeviceNotFound  = errors.New("printer device not found")
	ErrNoActiveDevice  = errors.New("no printer connected")
	ErrDeviceClosed    = errors.New("printer device handle is closed")
	ErrDeviceLeased    = errors.New("printer device is leased by another kiosk")
	ErrPrinterBusy     = errors.New("printer is busy")
	ErrConnectReplaced = errors.New("connect replaced by a newer connect")
	ErrMalformedBitmap = errors.New("malformed embedded bitmap")
)

// PrinterDevice is a discovered output device. Path is the local device node
// and never leaves the process.
type PrinterDevice struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Type   DeviceType   `json:"type"`
	Status DeviceStatus `json:"status"`
	Path   string       `json:"-"`
}

// StaticDevice is a device declared in configuration instead of discovered
type StaticDevice struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}
