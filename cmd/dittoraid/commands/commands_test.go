package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoraid/internal/bytesize"
	"github.com/marmos91/dittoraid/pkg/adapter"
	"github.com/marmos91/dittoraid/pkg/api"
	"github.com/marmos91/dittoraid/pkg/config"
	"github.com/marmos91/dittoraid/pkg/manifest"
	"github.com/marmos91/dittoraid/pkg/raid"
	"github.com/marmos91/dittoraid/pkg/raid/device"
)

// ============================================================================
// Test Helpers
// ============================================================================

// memoryArray builds a three-device RAID4 set over memory devices with
// 4-byte blocks. rebuild marks a slot for rebuild (-1 for none).
func memoryArray(t *testing.T, rebuild int) (*raid.DeviceSet, []*device.Memory) {
	t.Helper()

	layout, err := raid.NewLayout(raid.LevelParity, 4, 3)
	require.NoError(t, err)

	mems := make([]*device.Memory, 3)
	slots := make([]raid.Slot, 3)
	for i := range slots {
		mems[i] = device.NewMemory(64)
		slots[i] = raid.Slot{Path: "mem", Device: mems[i], State: raid.SlotLive}
		if i == rebuild {
			slots[i].State = raid.SlotRebuilding
		}
	}
	set, err := raid.NewDeviceSet(layout, slots)
	require.NoError(t, err)
	return set, mems
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(bytes.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// ============================================================================
// Argument Handling
// ============================================================================

func TestApplyAssembleArgs(t *testing.T) {
	cfg := config.GetDefaultConfig()
	require.NoError(t, applyAssembleArgs(cfg, []string{"4Ki", "/dev/nbd0", "/dev/sdb", "+/dev/sdc", "/dev/sdd"}))

	assert.Equal(t, 4*bytesize.KiB, cfg.Array.BlockSize)
	assert.Equal(t, "/dev/nbd0", cfg.Array.Target)
	assert.Equal(t, []string{"/dev/sdb", "+/dev/sdc", "/dev/sdd"}, cfg.Array.Devices)

	spec, err := cfg.Array.Resolve()
	require.NoError(t, err)
	slot, ok := spec.Rebuild()
	assert.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"}, slotPaths(spec))

	err = applyAssembleArgs(cfg, []string{"four", "/dev/nbd0", "a", "b"})
	assert.True(t, raid.IsConfigError(err))

	unchanged := config.GetDefaultConfig()
	require.NoError(t, applyAssembleArgs(unchanged, nil))
	assert.Empty(t, unchanged.Array.Devices)
}

// ============================================================================
// Offline Procedures
// ============================================================================

func TestPrepareSetRebuildsThenRecords(t *testing.T) {
	ctx := context.Background()
	set, mems := memoryArray(t, 1)

	// Slot 1 holds garbage. Slots 0 and 2 are zero except for one data
	// block and its parity, so the rebuilt slot must come back all zero.
	_, err := mems[0].WriteAt([]byte{1, 2, 3, 4}, 8)
	require.NoError(t, err)
	_, err = mems[2].WriteAt([]byte{1, 2, 3, 4}, 8)
	require.NoError(t, err)
	_, err = mems[1].WriteAt(bytes.Repeat([]byte{0xff}, 64), 0)
	require.NoError(t, err)

	store, err := manifest.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	spec := config.ArraySpec{
		Layout: set.Layout(),
		Slots: []raid.SlotSpec{
			{Path: "a", State: raid.SlotLive},
			{Path: "b", State: raid.SlotRebuilding},
			{Path: "c", State: raid.SlotLive},
		},
	}
	_, err = store.Reconcile(ctx, spec.Layout, slotPaths(spec))
	require.NoError(t, err)

	progress := &api.Progress{}
	require.NoError(t, prepareSet(ctx, set, spec, store, nil, progress))

	assert.Equal(t, make([]byte, 64), mems[1].Bytes())
	_, pending := set.RebuildIndex()
	assert.False(t, pending)

	snap, ok := progress.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "rebuild", snap.Phase)
	assert.True(t, snap.Finished)

	m, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.RebuiltSlot)
	assert.True(t, m.InitializedAt.IsZero())
}

func TestPrepareSetInitialize(t *testing.T) {
	set, mems := memoryArray(t, -1)
	for _, m := range mems {
		_, err := m.WriteAt(bytes.Repeat([]byte{0xaa}, 64), 0)
		require.NoError(t, err)
	}

	spec := config.ArraySpec{Layout: set.Layout(), Init: true}
	require.NoError(t, prepareSet(context.Background(), set, spec, nil, nil, &api.Progress{}))

	for i, m := range mems {
		assert.Equal(t, make([]byte, 64), m.Bytes(), "device %d not zeroed", i)
	}
}

func TestOpenAssemblyRecordsOnlyOpenedArrays(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	layout, err := raid.NewLayout(raid.LevelParity, 512, 3)
	require.NoError(t, err)
	slots := make([]raid.SlotSpec, 3)
	for i := range slots {
		slots[i] = raid.SlotSpec{Path: filepath.Join(dir, "d"+strconv.Itoa(i)+".img"), State: raid.SlotLive}
	}
	spec := config.ArraySpec{Layout: layout, Slots: slots}

	store, err := manifest.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	t.Run("DeviceFailsToOpen", func(t *testing.T) {
		// Only the first two images exist.
		for _, s := range slots[:2] {
			require.NoError(t, os.WriteFile(s.Path, make([]byte, 4096), 0644))
		}

		_, _, err := openAssembly(ctx, spec, store)
		require.ErrorIs(t, err, raid.ErrIO)

		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, manifest.ErrNotFound)
		events, err := store.Events(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, os.WriteFile(slots[2].Path, make([]byte, 4096), 0644))

		set, record, err := openAssembly(ctx, spec, store)
		require.NoError(t, err)
		require.NoError(t, set.Close())
		require.NotNil(t, record)

		events, err := store.Events(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, manifest.EventCreated, events[0].Kind)
	})

	t.Run("MismatchLeavesDevicesAlone", func(t *testing.T) {
		other, err := raid.NewLayout(raid.LevelParity, 1024, 3)
		require.NoError(t, err)

		_, _, err = openAssembly(ctx, config.ArraySpec{Layout: other, Slots: slots}, store)
		assert.ErrorIs(t, err, manifest.ErrManifestMismatch)

		events, err := store.Events(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

// ============================================================================
// Copy Helpers
// ============================================================================

func TestCopyRoundTrip(t *testing.T) {
	ctx := context.Background()
	set, _ := memoryArray(t, -1)
	arr, err := raid.New(set, raid.Options{})
	require.NoError(t, err)
	defer arr.Close()
	dev := adapter.New(arr, nil)

	data := []byte("striped with parity")
	n, err := copyToDevice(ctx, dev, bytes.NewReader(data), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	var out bytes.Buffer
	n, err = copyFromDevice(ctx, dev, &out, 10, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, out.Bytes())

	_, err = copyFromDevice(ctx, dev, &out, 200, -72)
	assert.Error(t, err)

	_, err = copyToDevice(ctx, dev, bytes.NewReader(make([]byte, 32)), 120)
	var perr adapter.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, adapter.CodeENOSPC, perr.Code())
}

// ============================================================================
// Output
// ============================================================================

func TestPrintStatusTable(t *testing.T) {
	set, _ := memoryArray(t, 2)

	var buf bytes.Buffer
	require.NoError(t, printStatusTable(&buf, StatusResult{
		Array:  set.Status(),
		Events: []manifest.Event{{Kind: manifest.EventCreated, Slot: -1, Detail: "raid4"}},
	}))

	out := buf.String()
	assert.Contains(t, out, "awaiting rebuild")
	assert.Contains(t, out, "rebuilding")
	assert.Contains(t, out, "created")
}

func TestSlotTable(t *testing.T) {
	rows := slotTable{{Index: 1, Path: "MISSING", State: "missing"}}.Rows()
	assert.Equal(t, [][]string{{"1", "MISSING", "missing", "-"}}, rows)
}

// ============================================================================
// End to End
// ============================================================================

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	var devices []string
	for _, name := range []string{"d0", "d1", "d2"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x5a}, 64*1024), 0644))
		devices = append(devices, path)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "logging:\n  level: ERROR\n  format: text\n  output: stderr\n" +
		"array:\n  level: 4\n  block_size: 4Ki\n  devices:\n" +
		"    - " + strings.Join(devices, "\n    - ") + "\n" +
		"manifest:\n  path: " + filepath.Join(dir, "manifest") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	out, err := execute(t, nil, "assemble", "--config", cfgPath, "--init", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "raid4")
	assert.Contains(t, out, "128KiB")
	assert.Contains(t, out, "Array ID")

	data := bytes.Repeat([]byte("dittoraid"), 1000)
	_, err = execute(t, data, "write", "--config", cfgPath, "--offset", "6Ki", "--file", "-")
	require.NoError(t, err)

	out, err = execute(t, nil, "read", "--config", cfgPath, "--offset", "6Ki", "--length", "9000", "--file", "-")
	require.NoError(t, err)
	assert.Equal(t, string(data), out)

	out, err = execute(t, nil, "verify", "--config", cfgPath, "--output", "json")
	require.NoError(t, err)
	var report VerifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(16), report.Stripes)
	assert.Zero(t, report.Mismatched)

	out, err = execute(t, nil, "status", "--config", cfgPath, "--output", "json", "--events")
	require.NoError(t, err)
	var status StatusResult
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "raid4", status.Array.Level)
	assert.Len(t, status.Array.Slots, 3)
	assert.False(t, status.Array.Degraded)
	require.NotNil(t, status.Manifest)
	assert.False(t, status.Manifest.InitializedAt.IsZero())

	kinds := make([]manifest.EventKind, len(status.Events))
	for i, ev := range status.Events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []manifest.EventKind{manifest.EventCreated, manifest.EventInitialized, manifest.EventVerified}, kinds)
}
