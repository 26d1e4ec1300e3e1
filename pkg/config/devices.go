package config

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittoraid/pkg/raid"
)

const (
	// MissingDevice marks an absent slot in the device list.
	MissingDevice = "MISSING"

	// RebuildPrefix marks the device that replaces a failed one.
	RebuildPrefix = "+"
)

// ParseDevices converts a device list into slot specifications.
//
// At most one entry may be MISSING and at most one may carry the '+'
// prefix, and the two may not be combined: a rebuild needs every other
// device present.
func ParseDevices(devices []string) ([]raid.SlotSpec, error) {
	specs := make([]raid.SlotSpec, len(devices))
	missing, rebuild := -1, -1

	for i, dev := range devices {
		switch {
		case dev == MissingDevice:
			if missing >= 0 {
				return nil, fmt.Errorf("%w: multiple %s devices (slots %d and %d)", raid.ErrConfig, MissingDevice, missing, i)
			}
			missing = i
			specs[i] = raid.SlotSpec{Path: dev, State: raid.SlotMissing}

		case strings.HasPrefix(dev, RebuildPrefix):
			if rebuild >= 0 {
				return nil, fmt.Errorf("%w: multiple rebuild targets (slots %d and %d), only one device can be recovered at a time", raid.ErrConfig, rebuild, i)
			}
			path := strings.TrimPrefix(dev, RebuildPrefix)
			if path == "" || path == MissingDevice {
				return nil, fmt.Errorf("%w: slot %d: invalid rebuild target %q", raid.ErrConfig, i, dev)
			}
			rebuild = i
			specs[i] = raid.SlotSpec{Path: path, State: raid.SlotRebuilding}

		case dev == "":
			return nil, fmt.Errorf("%w: slot %d: empty device path", raid.ErrConfig, i)

		default:
			specs[i] = raid.SlotSpec{Path: dev, State: raid.SlotLive}
		}
	}

	if missing >= 0 && rebuild >= 0 {
		return nil, fmt.Errorf("%w: cannot rebuild slot %d while slot %d is %s", raid.ErrConfig, rebuild, missing, MissingDevice)
	}

	return specs, nil
}

// FormatDevices is the inverse of ParseDevices.
func FormatDevices(specs []raid.SlotSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		switch s.State {
		case raid.SlotMissing:
			out[i] = MissingDevice
		case raid.SlotRebuilding:
			out[i] = RebuildPrefix + s.Path
		default:
			out[i] = s.Path
		}
	}
	return out
}

// ArraySpec is a fully resolved array description.
type ArraySpec struct {
	Layout raid.Layout
	Slots  []raid.SlotSpec
	Target string
	Init   bool
}

// Rebuild reports the slot being rebuilt, if any.
func (s ArraySpec) Rebuild() (int, bool) {
	for i, slot := range s.Slots {
		if slot.State == raid.SlotRebuilding {
			return i, true
		}
	}
	return -1, false
}

// Missing reports the absent slot, if any.
func (s ArraySpec) Missing() (int, bool) {
	for i, slot := range s.Slots {
		if slot.State == raid.SlotMissing {
			return i, true
		}
	}
	return -1, false
}

// Resolve validates the array section and converts it into a layout and slot
// list. Every failure wraps raid.ErrConfig.
func (a ArrayConfig) Resolve() (ArraySpec, error) {
	level, err := raid.ParseLevel(a.Level)
	if err != nil {
		return ArraySpec{}, err
	}
	if a.BlockSize == 0 {
		return ArraySpec{}, fmt.Errorf("%w: block size must be positive", raid.ErrConfig)
	}
	if len(a.Devices) == 0 {
		return ArraySpec{}, fmt.Errorf("%w: no devices configured", raid.ErrConfig)
	}

	layout, err := raid.NewLayout(level, a.BlockSize.Int64(), len(a.Devices))
	if err != nil {
		return ArraySpec{}, err
	}

	slots, err := ParseDevices(a.Devices)
	if err != nil {
		return ArraySpec{}, err
	}

	spec := ArraySpec{Layout: layout, Slots: slots, Target: a.Target, Init: a.Init}

	if idx, ok := spec.Missing(); ok && a.Init {
		return ArraySpec{}, fmt.Errorf("%w: cannot initialize with slot %d %s", raid.ErrConfig, idx, MissingDevice)
	}
	if idx, ok := spec.Rebuild(); ok && !layout.HasParity() {
		return ArraySpec{}, fmt.Errorf("%w: slot %d: %s has no parity to rebuild from", raid.ErrConfig, idx, level)
	}

	return spec, nil
}
