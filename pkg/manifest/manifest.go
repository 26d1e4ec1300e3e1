// Package manifest keeps an optional record of an array's layout next to the
// devices.
//
// The devices themselves carry no superblock, so nothing stops an operator
// from assembling them with a different block size or level, which silently
// scrambles the data. When a manifest is configured, assembly compares the
// requested layout against the recorded one and refuses a mismatch.
package manifest

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittoraid/pkg/raid"
)

var (
	// ErrNotFound is returned when no manifest has been recorded yet.
	ErrNotFound = errors.New("manifest not found")

	// ErrManifestMismatch indicates the requested layout differs from the
	// recorded one. It is a configuration error.
	ErrManifestMismatch = fmt.Errorf("%w: layout does not match manifest", raid.ErrConfig)
)

// Manifest describes an assembled array.
type Manifest struct {
	ID        uuid.UUID `json:"id"`
	Level     int       `json:"level"`
	BlockSize int64     `json:"block_size"`
	Devices   []string  `json:"devices"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// InitializedAt is zero until the array has been zero-filled.
	InitializedAt time.Time `json:"initialized_at,omitzero"`

	// RebuiltAt and RebuiltSlot record the most recent completed rebuild.
	RebuiltAt   time.Time `json:"rebuilt_at,omitzero"`
	RebuiltSlot int       `json:"rebuilt_slot"`
}

// New creates a manifest for layout with a fresh ID.
func New(layout raid.Layout, devices []string, now time.Time) *Manifest {
	return &Manifest{
		ID:          uuid.New(),
		Level:       int(layout.Level),
		BlockSize:   layout.BlockSize,
		Devices:     append([]string(nil), devices...),
		CreatedAt:   now,
		UpdatedAt:   now,
		RebuiltSlot: -1,
	}
}

// Layout returns the recorded layout.
func (m *Manifest) Layout() (raid.Layout, error) {
	level, err := raid.ParseLevel(m.Level)
	if err != nil {
		return raid.Layout{}, err
	}
	return raid.NewLayout(level, m.BlockSize, len(m.Devices))
}

// Match checks that layout is the one recorded. Device paths are not
// compared: slots are positional and a replaced disk may have a new name.
func (m *Manifest) Match(layout raid.Layout) error {
	switch {
	case int(layout.Level) != m.Level:
		return fmt.Errorf("%w: level %d, recorded %d", ErrManifestMismatch, int(layout.Level), m.Level)
	case layout.BlockSize != m.BlockSize:
		return fmt.Errorf("%w: block size %d, recorded %d", ErrManifestMismatch, layout.BlockSize, m.BlockSize)
	case layout.Devices != len(m.Devices):
		return fmt.Errorf("%w: %d devices, recorded %d", ErrManifestMismatch, layout.Devices, len(m.Devices))
	}
	return nil
}

// EventKind names a recorded lifecycle event.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventAssembled   EventKind = "assembled"
	EventInitialized EventKind = "initialized"
	EventRebuilt     EventKind = "rebuilt"
	EventVerified    EventKind = "verified"
)

// Event is one entry of the array history.
type Event struct {
	Time   time.Time `json:"time"`
	Kind   EventKind `json:"kind"`
	Slot   int       `json:"slot"`
	Detail string    `json:"detail,omitempty"`
}
