package raid

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/pkg/raid/device"
)

// ============================================================================
// Slots
// ============================================================================

// SlotState is the role of one device position in the array.
type SlotState int

const (
	// SlotLive holds a present device with consistent contents.
	SlotLive SlotState = iota

	// SlotMissing has no device. Its data is reconstructed from parity.
	SlotMissing

	// SlotRebuilding holds a replacement device whose contents are not yet
	// valid. It becomes live once Rebuild completes.
	SlotRebuilding
)

func (s SlotState) String() string {
	switch s {
	case SlotLive:
		return "live"
	case SlotMissing:
		return "missing"
	case SlotRebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Slot is one ordered position of a DeviceSet.
type Slot struct {
	// Index is the position in the array. It never changes.
	Index int

	// Path is where the device was opened from; informational.
	Path string

	// Device is nil exactly when State is SlotMissing.
	Device device.Device

	// State is the slot role.
	State SlotState
}

// Present reports whether the slot holds a device.
func (s Slot) Present() bool {
	return s.Device != nil
}

// Size returns the device size, or 0 for a missing slot.
func (s Slot) Size() int64 {
	if s.Device == nil {
		return 0
	}
	return s.Device.Size()
}

// SlotSpec describes a slot before its device is opened.
type SlotSpec struct {
	Path  string
	State SlotState
}

// ============================================================================
// DeviceSet
// ============================================================================

// DeviceSet is the ordered collection of device slots an array is built on.
//
// At most one slot is missing and at most one is rebuilding, never both.
// The usable stripe count is derived from the smallest present device and is
// fixed at construction.
type DeviceSet struct {
	layout  Layout
	stripes int64

	mu     sync.RWMutex
	slots  []Slot
	closed bool
}

// NewDeviceSet validates slots against layout and returns the set. Slot
// indices are assigned from their position. On error the caller still owns
// the devices.
func NewDeviceSet(layout Layout, slots []Slot) (*DeviceSet, error) {
	if len(slots) != layout.Devices {
		return nil, configError("layout expects %d devices, got %d", layout.Devices, len(slots))
	}

	owned := make([]Slot, len(slots))
	missing, rebuilding := -1, -1
	var smallest int64 = -1

	for i, s := range slots {
		s.Index = i
		switch s.State {
		case SlotMissing:
			if s.Device != nil {
				return nil, configError("slot %d is marked missing but has a device", i)
			}
			if missing >= 0 {
				return nil, configError("slots %d and %d are both missing: at most one device may be absent", missing, i)
			}
			missing = i
		case SlotRebuilding:
			if rebuilding >= 0 {
				return nil, configError("slots %d and %d are both marked for rebuild: at most one rebuild target is allowed", rebuilding, i)
			}
			rebuilding = i
			fallthrough
		case SlotLive:
			if s.Device == nil {
				return nil, configError("slot %d is %s but has no device", i, s.State)
			}
			if size := s.Device.Size(); smallest < 0 || size < smallest {
				smallest = size
			}
		default:
			return nil, configError("slot %d has unknown state %d", i, int(s.State))
		}
		owned[i] = s
	}

	if missing >= 0 && rebuilding >= 0 {
		return nil, configError("slot %d is missing while slot %d is marked for rebuild", missing, rebuilding)
	}
	if rebuilding >= 0 && !layout.HasParity() {
		return nil, configError("%s has no redundancy to rebuild slot %d from", layout.Level, rebuilding)
	}

	stripes := smallest / layout.BlockSize
	if stripes <= 0 {
		return nil, configError("smallest device (%d bytes) is smaller than one block (%d bytes)", smallest, layout.BlockSize)
	}

	return &DeviceSet{layout: layout, stripes: stripes, slots: owned}, nil
}

// Open opens every slot described by specs as a file device and builds the
// set. On any failure every device opened so far is closed again.
func Open(layout Layout, specs []SlotSpec, opts device.FileOptions) (*DeviceSet, error) {
	slots := make([]Slot, len(specs))
	closeAll := func() {
		for _, s := range slots {
			if s.Device != nil {
				_ = s.Device.Close()
			}
		}
	}

	for i, spec := range specs {
		slots[i] = Slot{Index: i, Path: spec.Path, State: spec.State}
		if spec.State == SlotMissing {
			continue
		}
		dev, err := device.OpenFile(spec.Path, opts)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("%w: slot %d: %w", ErrIO, i, err)
		}
		slots[i].Device = dev
	}

	set, err := NewDeviceSet(layout, slots)
	if err != nil {
		closeAll()
		return nil, err
	}
	return set, nil
}

// Layout returns the array geometry.
func (s *DeviceSet) Layout() Layout {
	return s.layout
}

// Len returns the number of slots.
func (s *DeviceSet) Len() int {
	return len(s.slots)
}

// BlockSize returns the bytes per block.
func (s *DeviceSet) BlockSize() int64 {
	return s.layout.BlockSize
}

// StripeCount returns the number of stripes every device can hold.
func (s *DeviceSet) StripeCount() int64 {
	return s.stripes
}

// LogicalSize returns the addressable size of the array in bytes.
func (s *DeviceSet) LogicalSize() int64 {
	return s.layout.LogicalSize(s.stripes)
}

// Slot returns a copy of slot i.
func (s *DeviceSet) Slot(i int) Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[i]
}

// Slots returns a copy of every slot in index order.
func (s *DeviceSet) Slots() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Slot(nil), s.slots...)
}

// MissingIndex returns the index of the missing slot, if any.
func (s *DeviceSet) MissingIndex() (int, bool) {
	return s.indexOf(SlotMissing)
}

// RebuildIndex returns the index of the slot awaiting rebuild, if any.
func (s *DeviceSet) RebuildIndex() (int, bool) {
	return s.indexOf(SlotRebuilding)
}

// Degraded reports whether a device is missing.
func (s *DeviceSet) Degraded() bool {
	_, ok := s.MissingIndex()
	return ok
}

func (s *DeviceSet) indexOf(state SlotState) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, slot := range s.slots {
		if slot.State == state {
			return slot.Index, true
		}
	}
	return -1, false
}

// MarkRebuilding flags live slot i as the rebuild target. The set must not
// already have a missing or rebuilding slot.
func (s *DeviceSet) MarkRebuilding(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.layout.HasParity() {
		return configError("%s has no redundancy to rebuild from", s.layout.Level)
	}
	if i < 0 || i >= len(s.slots) {
		return configError("slot %d out of range [0, %d)", i, len(s.slots))
	}
	for _, slot := range s.slots {
		if slot.State != SlotLive {
			return configError("slot %d is %s: at most one slot may be missing or rebuilding", slot.Index, slot.State)
		}
	}
	s.slots[i].State = SlotRebuilding
	logger.Info("Slot state changed", logger.Device(i), logger.Path(s.slots[i].Path), logger.State(SlotRebuilding.String()))
	return nil
}

// markLive clears the rebuilding state of slot i.
func (s *DeviceSet) markLive(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[i].State = SlotLive
	logger.Info("Slot state changed", logger.Device(i), logger.Path(s.slots[i].Path), logger.State(SlotLive.String()))
}

// device returns the handle of slot i, or nil when it is missing.
func (s *DeviceSet) device(i int) device.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[i].Device
}

// Flush syncs every present device in parallel and returns the first error.
func (s *DeviceSet) Flush(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	slots := append([]Slot(nil), s.slots...)
	s.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, slot := range slots {
		if slot.Device == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := slot.Device.Sync(); err != nil {
				return fmt.Errorf("%w: sync device %d: %w", ErrIO, slot.Index, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases every device handle. All devices are closed even if some
// fail; the errors are aggregated. Closing twice is a no-op.
func (s *DeviceSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var result *multierror.Error
	for _, slot := range s.slots {
		if slot.Device == nil {
			continue
		}
		if err := slot.Device.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close device %d: %w", slot.Index, err))
		}
	}
	return result.ErrorOrNil()
}

// ============================================================================
// Device I/O helpers
// ============================================================================

// readFull reads len(buf) bytes from slot i at off. A short transfer is an
// I/O error even when the device reports none.
func (s *DeviceSet) readFull(i int, buf []byte, off int64) error {
	dev := s.device(i)
	if dev == nil {
		return fmt.Errorf("%w: read of missing device %d", ErrDataLoss, i)
	}
	n, err := dev.ReadAt(buf, off)
	if n == len(buf) {
		// io.ReaderAt may report io.EOF alongside a full read at the end.
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return ioError("read", i, off, err)
}

// writeFull writes buf to slot i at off.
func (s *DeviceSet) writeFull(i int, buf []byte, off int64) error {
	dev := s.device(i)
	if dev == nil {
		return fmt.Errorf("%w: write to missing device %d", ErrDataLoss, i)
	}
	n, err := dev.WriteAt(buf, off)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return ioError("write", i, off, err)
	}
	return nil
}
