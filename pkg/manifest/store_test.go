package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoraid/pkg/raid"
)

func mustLayout(t *testing.T, level raid.Level, bs int64, n int) raid.Layout {
	t.Helper()
	l, err := raid.NewLayout(level, bs, n)
	require.NoError(t, err)
	return l
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestReconcileCreatesAndMatches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	layout := mustLayout(t, raid.LevelParity, 4096, 3)
	devices := []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"}

	s, err := Open(dir)
	require.NoError(t, err)
	s.now = fixedClock()

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first, err := s.Reconcile(ctx, layout, devices)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Level)
	assert.Equal(t, int64(4096), first.BlockSize)
	assert.Equal(t, devices, first.Devices)
	assert.Equal(t, -1, first.RebuiltSlot)
	require.NoError(t, s.Close())

	// Reopen from disk: the ID survives and renamed devices are accepted.
	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	renamed := []string{"/dev/sdb", "/dev/sdx", "/dev/sdd"}
	second, err := s.Reconcile(ctx, layout, renamed)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, renamed, second.Devices)

	got, err := second.Layout()
	require.NoError(t, err)
	assert.Equal(t, layout, got)
}

func TestReconcileMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	base := mustLayout(t, raid.LevelParity, 4096, 3)
	_, err = s.Reconcile(ctx, base, []string{"a", "b", "c"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		layout  raid.Layout
		devices []string
	}{
		{"BlockSize", mustLayout(t, raid.LevelParity, 8192, 3), []string{"a", "b", "c"}},
		{"DeviceCount", mustLayout(t, raid.LevelParity, 4096, 4), []string{"a", "b", "c", "d"}},
		{"Level", mustLayout(t, raid.LevelStripe, 4096, 2), []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Reconcile(ctx, tt.layout, tt.devices)
			assert.ErrorIs(t, err, ErrManifestMismatch)
			assert.True(t, raid.IsConfigError(err))
		})
	}

	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, m.Devices, "mismatch must not modify the manifest")
}

func TestMarkAndEvents(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()
	s.now = fixedClock()

	require.ErrorIs(t, s.MarkInitialized(ctx), ErrNotFound)

	layout := mustLayout(t, raid.LevelParity, 512, 4)
	_, err = s.Reconcile(ctx, layout, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.NoError(t, s.MarkInitialized(ctx))
	require.NoError(t, s.MarkRebuilt(ctx, 2))
	require.NoError(t, s.Record(ctx, Event{Kind: EventVerified, Slot: -1, Detail: "0 mismatches"}))

	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, m.InitializedAt.IsZero())
	assert.Equal(t, 2, m.RebuiltSlot)
	assert.True(t, m.RebuiltAt.After(m.InitializedAt))

	events, err := s.Events(ctx)
	require.NoError(t, err)
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{EventCreated, EventInitialized, EventRebuilt, EventVerified}, kinds)
	assert.Equal(t, 2, events[2].Slot)
}

func TestCanceledContext(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Record(ctx, Event{Kind: EventAssembled}), context.Canceled)
}
