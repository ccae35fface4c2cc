package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// StatusObserver is told about every device status transition
type StatusObserver func(device PrinterDevice)

// Registry tracks discovered devices and owns the handle of the single
// connected device. Connecting a device disconnects the previous one.
type Registry struct {
	mu          sync.Mutex
	discoverers []Discoverer
	devices     []PrinterDevice
	active      *deviceHandle
	lease       Lease
	owner       string
	observers   []StatusObserver

	// only the connect holding the latest sequence may finish
	connectSeq uint64
	inflight   inflightConnect
}

type inflightConnect struct {
	id  string
	seq uint64
}

func NewRegistry(lease Lease, owner string, discoverers ...Discoverer) *Registry {
	if lease == nil {
		lease = NewMemoryLease()
	}
	return &Registry{
		discoverers: discoverers,
		devices:     []PrinterDevice{},
		lease:       lease,
		owner:       owner,
	}
}

// OnStatusChange registers an observer; observers run outside the registry lock
func (r *Registry) OnStatusChange(observer StatusObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, observer)
}

// Devices returns a snapshot of the known devices
func (r *Registry) Devices() []PrinterDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PrinterDevice, len(r.devices))
	copy(out, r.devices)
	return out
}

// Scan rediscovers devices of every family. It never fails: discovery errors
// are logged and the affected family contributes no devices.
func (r *Registry) Scan(ctx context.Context) []PrinterDevice {
	types := make([]DeviceType, 0, len(r.discoverers))
	for _, d := range r.discoverers {
		types = append(types, d.Type())
	}
	return r.ScanType(ctx, types...)
}

// ScanType rediscovers only the given device families and keeps the others
func (r *Registry) ScanType(ctx context.Context, types ...DeviceType) []PrinterDevice {
	wanted := make(map[DeviceType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	found := []PrinterDevice{}
	for _, d := range r.discoverers {
		if !wanted[d.Type()] {
			continue
		}
		devices, err := d.Discover(ctx)
		if err != nil {
			slog.Warn("Registry: discovery failed", "type", d.Type(), "error", err)
			continue
		}
		found = append(found, devices...)
	}

	r.mu.Lock()
	next := make([]PrinterDevice, 0, len(found)+len(r.devices))
	for _, dev := range r.devices {
		if !wanted[dev.Type] {
			next = append(next, dev)
		}
	}
	var keptActive bool
	for _, dev := range found {
		if r.active != nil && dev.ID == r.active.device.ID {
			dev.Status = StatusConnected
			keptActive = true
		}
		next = append(next, dev)
	}

	var pending []PrinterDevice
	var dropped *deviceHandle
	if r.active != nil && wanted[r.active.device.Type] && !keptActive {
		dropped = r.active
		r.active = nil
		gone := dropped.device
		gone.Status = StatusDisconnected
		pending = append(pending, gone)
	}
	r.devices = next
	result := make([]PrinterDevice, len(next))
	copy(result, next)
	r.mu.Unlock()

	if dropped != nil {
		slog.Info("Registry: connected device vanished on rescan", "device_id", dropped.device.ID)
		r.release(ctx, dropped)
	}
	r.notify(pending...)

	slog.Debug("Registry: scan complete", "types", types, "devices", len(result))
	return result
}

// Connect opens the device with the given id. The status always passes
// through connecting; on failure it reverts to disconnected and the error is
// returned. A newer Connect to another device replaces one still in flight,
// whose handle is closed once its open returns.
func (r *Registry) Connect(ctx context.Context, id string) (PrinterDevice, error) {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return PrinterDevice{}, fmt.Errorf("%s: %w", id, ErrDeviceNotFound)
	}
	switch r.devices[idx].Status {
	case StatusConnected:
		dev := r.devices[idx]
		r.mu.Unlock()
		return dev, nil
	case StatusConnecting:
		r.mu.Unlock()
		return PrinterDevice{}, fmt.Errorf("%s is already connecting: %w", id, ErrPrinterBusy)
	}

	r.devices[idx].Status = StatusConnecting
	r.connectSeq++
	mine := inflightConnect{id: id, seq: r.connectSeq}
	r.inflight = mine
	target := r.devices[idx]
	pending := []PrinterDevice{target}
	for i := range r.devices {
		if i != idx && r.devices[i].Status == StatusConnecting {
			r.devices[i].Status = StatusDisconnected
			pending = append(pending, r.devices[i])
		}
	}

	previous := r.active
	r.active = nil
	if previous != nil {
		if i := r.indexOf(previous.device.ID); i >= 0 {
			r.devices[i].Status = StatusDisconnected
			pending = append(pending, r.devices[i])
		}
	}
	r.mu.Unlock()

	r.notify(pending...)
	if previous != nil {
		slog.Info("Registry: disconnecting previous device", "device_id", previous.device.ID)
		r.release(ctx, previous)
	}

	handle, err := r.open(ctx, target)
	if err != nil {
		slog.Error("Registry: failed to connect", "device_id", id, "error", err)
		r.mu.Lock()
		current := r.inflight == mine
		if current {
			r.inflight = inflightConnect{}
		}
		r.mu.Unlock()
		if current {
			r.setStatusIf(id, StatusConnecting, StatusDisconnected)
		}
		return PrinterDevice{}, err
	}

	r.mu.Lock()
	idx = r.indexOf(id)
	if r.inflight != mine || idx < 0 || r.devices[idx].Status != StatusConnecting {
		// a newer connect to the same device still needs the lease
		keepLease := r.inflight.id == id || (r.active != nil && r.active.device.ID == id)
		if r.inflight == mine {
			r.inflight = inflightConnect{}
		}
		r.mu.Unlock()
		if keepLease {
			_ = handle.Close()
		} else {
			r.release(ctx, handle)
		}
		if idx < 0 {
			return PrinterDevice{}, fmt.Errorf("%s vanished while connecting: %w", id, ErrDeviceNotFound)
		}
		slog.Info("Registry: connect replaced while opening", "device_id", id)
		return PrinterDevice{}, fmt.Errorf("%s: %w", id, ErrConnectReplaced)
	}
	r.inflight = inflightConnect{}
	r.devices[idx].Status = StatusConnected
	handle.device = r.devices[idx]
	r.active = handle
	connected := r.devices[idx]
	r.mu.Unlock()

	r.notify(connected)
	slog.Info("Registry: device connected", "device_id", id, "name", connected.Name, "type", connected.Type)
	return connected, nil
}

// Disconnect closes the handle of a connected device; disconnected devices are left alone
func (r *Registry) Disconnect(ctx context.Context, id string) error {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrDeviceNotFound)
	}
	if r.active == nil || r.active.device.ID != id {
		r.mu.Unlock()
		return nil
	}
	handle := r.active
	r.active = nil
	r.devices[idx].Status = StatusDisconnected
	dev := r.devices[idx]
	r.mu.Unlock()

	r.release(ctx, handle)
	r.notify(dev)
	slog.Info("Registry: device disconnected", "device_id", id)
	return nil
}

// Active returns the connected device and a writer to its handle
func (r *Registry) Active() (PrinterDevice, io.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return PrinterDevice{}, nil, ErrNoActiveDevice
	}
	return r.active.device, r.active, nil
}

// Run rescans USB devices every scanInterval and keeps the active lease alive
// every leaseInterval until ctx is done. A zero interval disables that loop.
func (r *Registry) Run(ctx context.Context, scanInterval, leaseInterval time.Duration) {
	var scanC, leaseC <-chan time.Time
	if scanInterval > 0 {
		t := time.NewTicker(scanInterval)
		defer t.Stop()
		scanC = t.C
	}
	if leaseInterval > 0 {
		t := time.NewTicker(leaseInterval)
		defer t.Stop()
		leaseC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanC:
			r.ScanType(ctx, DeviceTypeUSB)
		case <-leaseC:
			r.refreshLease(ctx)
		}
	}
}

// Close disconnects the active device
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	handle := r.active
	r.mu.Unlock()
	if handle == nil {
		return nil
	}
	return r.Disconnect(ctx, handle.device.ID)
}

func (r *Registry) refreshLease(ctx context.Context) {
	r.mu.Lock()
	handle := r.active
	r.mu.Unlock()
	if handle == nil {
		return
	}
	if err := r.lease.Refresh(ctx, handle.device.ID, r.owner); err != nil {
		slog.Warn("Registry: lease refresh failed", "device_id", handle.device.ID, "error", err)
	}
}

func (r *Registry) open(ctx context.Context, device PrinterDevice) (*deviceHandle, error) {
	discoverer := r.discovererFor(device.Type)
	if discoverer == nil {
		return nil, fmt.Errorf("no discoverer for %s devices", device.Type)
	}
	if err := r.lease.Acquire(ctx, device.ID, r.owner); err != nil {
		return nil, err
	}
	w, err := discoverer.Open(ctx, device)
	if err != nil {
		if relErr := r.lease.Release(ctx, device.ID, r.owner); relErr != nil {
			slog.Warn("Registry: failed to release lease", "device_id", device.ID, "error", relErr)
		}
		return nil, err
	}
	return &deviceHandle{device: device, w: w}, nil
}

// release closes the handle and gives the lease back
func (r *Registry) release(ctx context.Context, handle *deviceHandle) {
	if err := handle.Close(); err != nil && !errors.Is(err, ErrDeviceClosed) {
		slog.Warn("Registry: failed to close device handle", "device_id", handle.device.ID, "error", err)
	}
	if err := r.lease.Release(ctx, handle.device.ID, r.owner); err != nil {
		slog.Warn("Registry: failed to release lease", "device_id", handle.device.ID, "error", err)
	}
}

// setStatusIf moves a device from one status to another, leaving it alone
// when something else changed it first
func (r *Registry) setStatusIf(id string, from, to DeviceStatus) {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 || r.devices[idx].Status != from {
		r.mu.Unlock()
		return
	}
	r.devices[idx].Status = to
	dev := r.devices[idx]
	r.mu.Unlock()
	r.notify(dev)
}

func (r *Registry) notify(devices ...PrinterDevice) {
	if len(devices) == 0 {
		return
	}
	r.mu.Lock()
	observers := make([]StatusObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()
	for _, dev := range devices {
		for _, observer := range observers {
			observer(dev)
		}
	}
}

func (r *Registry) indexOf(id string) int {
	for i, dev := range r.devices {
		if dev.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) discovererFor(t DeviceType) Discoverer {
	for _, d := range r.discoverers {
		if d.Type() == t {
			return d
		}
	}
	return nil
}

// deviceHandle serializes writes against close
type deviceHandle struct {
	mu     sync.Mutex
	device PrinterDevice
	w      io.WriteCloser
	closed bool
}

func (h *deviceHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrDeviceClosed
	}
	return h.w.Write(p)
}

func (h *deviceHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrDeviceClosed
	}
	h.closed = true
	return h.w.Close()
}
