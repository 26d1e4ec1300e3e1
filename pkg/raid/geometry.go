package raid

import (
	"fmt"
	"math"
)

// ============================================================================
// Level
// ============================================================================

// Level selects the data layout of an array.
type Level int

const (
	// LevelStripe spreads blocks round-robin over every device (RAID0).
	LevelStripe Level = 0

	// LevelParity spreads blocks over N-1 data devices and keeps the XOR of
	// each stripe on the last device (RAID4).
	LevelParity Level = 4
)

// Device count limits per level.
const (
	MinDevices    = 2
	MaxDevices    = 16
	StripeDevices = 2
)

const (
	noParityIndex = -1

	// maxRequestLength bounds a single request so extent lengths and buffer
	// offsets fit in an int on every platform.
	maxRequestLength = math.MaxInt32
)

// ParseLevel converts the numeric RAID level used in configuration.
func ParseLevel(n int) (Level, error) {
	switch Level(n) {
	case LevelStripe, LevelParity:
		return Level(n), nil
	default:
		return 0, configError("unsupported RAID level %d (supported: 0, 4)", n)
	}
}

func (l Level) String() string {
	switch l {
	case LevelStripe:
		return "raid0"
	case LevelParity:
		return "raid4"
	default:
		return fmt.Sprintf("raid?(%d)", int(l))
	}
}

// ============================================================================
// Layout
// ============================================================================

// Layout is the pure address-translation description of an array.
//
// A logical block b lives on data device DeviceOf(b) at physical byte offset
// PhysicalOffset(b). With LevelParity the parity of stripe s lives on
// ParityIndex() at offset s*BlockSize.
//
// Example with 4 devices, LevelParity (data width 3):
//
//	block:   0  1  2  3  4  5
//	device:  0  1  2  0  1  2
//	stripe:  0  0  0  1  1  1
type Layout struct {
	Level     Level
	BlockSize int64
	Devices   int
}

// NewLayout validates and returns a Layout.
func NewLayout(level Level, blockSize int64, devices int) (Layout, error) {
	if blockSize <= 0 {
		return Layout{}, configError("block size must be positive, got %d", blockSize)
	}
	switch level {
	case LevelStripe:
		if devices != StripeDevices {
			return Layout{}, configError("%s requires exactly %d devices, got %d", level, StripeDevices, devices)
		}
	case LevelParity:
		if devices < MinDevices || devices > MaxDevices {
			return Layout{}, configError("%s requires %d to %d devices, got %d", level, MinDevices, MaxDevices, devices)
		}
	default:
		return Layout{}, configError("unsupported RAID level %d", int(level))
	}
	return Layout{Level: level, BlockSize: blockSize, Devices: devices}, nil
}

// DataWidth returns the number of devices carrying logical data per stripe.
func (l Layout) DataWidth() int {
	if l.Level == LevelParity {
		return l.Devices - 1
	}
	return l.Devices
}

// HasParity reports whether the layout keeps a parity device.
func (l Layout) HasParity() bool {
	return l.Level == LevelParity
}

// ParityIndex returns the parity device index, or -1 when there is none.
func (l Layout) ParityIndex() int {
	if l.HasParity() {
		return l.Devices - 1
	}
	return noParityIndex
}

// StripeOf returns the stripe a logical block belongs to.
func (l Layout) StripeOf(block int64) int64 {
	return block / int64(l.DataWidth())
}

// DeviceOf returns the data device holding a logical block.
func (l Layout) DeviceOf(block int64) int {
	return int(block % int64(l.DataWidth()))
}

// PhysicalOffset returns the byte offset of a logical block on its device.
func (l Layout) PhysicalOffset(block int64) int64 {
	return l.StripeOf(block) * l.BlockSize
}

// LogicalSize returns the addressable size of an array with the given
// number of stripes.
func (l Layout) LogicalSize(stripes int64) int64 {
	return stripes * l.BlockSize * int64(l.DataWidth())
}

// CheckRange returns ErrOutOfRange unless [offset, offset+length) lies within
// logicalSize.
func (l Layout) CheckRange(offset, length, logicalSize int64) error {
	if offset < 0 || length < 0 || length > maxRequestLength {
		return fmt.Errorf("%w: offset=%d length=%d", ErrOutOfRange, offset, length)
	}
	if offset > logicalSize || length > logicalSize-offset {
		return fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOutOfRange, offset, length, logicalSize)
	}
	return nil
}

// ============================================================================
// Extent Iterator
// ============================================================================

// Extent is the portion of a logical byte range that falls within a single
// logical block.
type Extent struct {
	// Block is the logical block index.
	Block int64

	// Stripe is the stripe (row) the block belongs to.
	Stripe int64

	// Device is the data device index holding the block.
	Device int

	// InBlock is the byte offset of the extent within its block.
	InBlock int64

	// Offset is the physical byte offset on the device (block start + InBlock).
	// The parity bytes covering this extent live at the same offset on the
	// parity device.
	Offset int64

	// Length is the number of bytes in this extent (1 to BlockSize).
	Length int

	// BufOffset is the offset into the caller's buffer for this extent.
	BufOffset int
}

// Extents returns an iterator over the per-block pieces of a logical range.
// The first and last extents may be partial blocks; every other extent is a
// whole block. A zero length yields nothing.
//
// Usage:
//
//	for ext := range layout.Extents(offset, int64(len(buf))) {
//	    dev.ReadAt(buf[ext.BufOffset:ext.BufOffset+ext.Length], ext.Offset)
//	}
func (l Layout) Extents(offset, length int64) func(yield func(Extent) bool) {
	return func(yield func(Extent) bool) {
		done := int64(0)
		for done < length {
			pos := offset + done
			block := pos / l.BlockSize
			inBlock := pos % l.BlockSize
			n := min(l.BlockSize-inBlock, length-done)

			ext := Extent{
				Block:     block,
				Stripe:    l.StripeOf(block),
				Device:    l.DeviceOf(block),
				InBlock:   inBlock,
				Offset:    l.PhysicalOffset(block) + inBlock,
				Length:    int(n),
				BufOffset: int(done),
			}
			if !yield(ext) {
				return
			}
			done += n
		}
	}
}
