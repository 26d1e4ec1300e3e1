package raid

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoraid/pkg/raid/device"
)

// ============================================================================
// Test Helpers
// ============================================================================

// testArray bundles an array with direct handles on its memory devices.
type testArray struct {
	*Array
	set    *DeviceSet
	mems   []*device.Memory
	faults []*device.Faulty
}

// setupOpts describes a memory-backed device set.
type setupOpts struct {
	level     Level
	blockSize int64
	devices   int
	devSize   int64
	missing   int // -1 for none
	rebuild   int // -1 for none
}

func defaultOpts(level Level, devices int) setupOpts {
	return setupOpts{
		level:     level,
		blockSize: 4,
		devices:   devices,
		devSize:   64,
		missing:   -1,
		rebuild:   -1,
	}
}

// newTestSet builds a DeviceSet of Faulty-wrapped memory devices. The memory
// devices are returned even for the missing slot so tests can compare against
// what the device would have held.
func newTestSet(t *testing.T, o setupOpts) (*DeviceSet, []*device.Memory, []*device.Faulty) {
	t.Helper()

	layout, err := NewLayout(o.level, o.blockSize, o.devices)
	require.NoError(t, err)

	mems := make([]*device.Memory, o.devices)
	faults := make([]*device.Faulty, o.devices)
	slots := make([]Slot, o.devices)
	for i := range o.devices {
		mems[i] = device.NewMemory(o.devSize)
		faults[i] = device.NewFaulty(mems[i])
		slots[i] = Slot{Path: "mem", Device: faults[i], State: SlotLive}
		switch i {
		case o.missing:
			slots[i] = Slot{Path: "MISSING", State: SlotMissing}
		case o.rebuild:
			slots[i].State = SlotRebuilding
		}
	}

	set, err := NewDeviceSet(layout, slots)
	require.NoError(t, err)
	return set, mems, faults
}

// newTestArray builds an Array over a fresh memory set.
func newTestArray(t *testing.T, o setupOpts) *testArray {
	t.Helper()

	set, mems, faults := newTestSet(t, o)
	arr, err := New(set, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = arr.Close() })

	return &testArray{Array: arr, set: set, mems: mems, faults: faults}
}

// totalIO sums the reads and writes seen by every device.
func (ta *testArray) totalIO() int64 {
	var n int64
	for _, f := range ta.faults {
		n += f.Reads() + f.Writes()
	}
	return n
}

// totalWrites sums the writes seen by every device.
func (ta *testArray) totalWrites() int64 {
	var n int64
	for _, f := range ta.faults {
		n += f.Writes()
	}
	return n
}

// block returns the bytes of stripe s on device i.
func (ta *testArray) block(i int, s int64) []byte {
	bs := ta.layout.BlockSize
	return ta.mems[i].Bytes()[s*bs : (s+1)*bs]
}

// assertParity checks that every stripe's parity equals the XOR of its data.
func assertParity(t *testing.T, layout Layout, stripes int64, mems []*device.Memory) {
	t.Helper()

	bs := layout.BlockSize
	for s := range stripes {
		var blocks [][]byte
		for d := range layout.DataWidth() {
			blocks = append(blocks, mems[d].Bytes()[s*bs:(s+1)*bs])
		}
		parity := mems[layout.ParityIndex()].Bytes()[s*bs : (s+1)*bs]
		require.Equal(t, XORBlocks(blocks...), parity, "stripe %d parity mismatch", s)
	}
}

// fill returns n deterministic pseudo-random bytes.
func fill(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.UintN(256))
	}
	return out
}

// recordingMetrics is a Metrics implementation that counts calls.
type recordingMetrics struct {
	mu              sync.Mutex
	requests        map[string]int
	reconstructions int
	parityUpdates   map[string]int
	progress        map[string][2]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		requests:      map[string]int{},
		parityUpdates: map[string]int{},
		progress:      map[string][2]int64{},
	}
}

func (m *recordingMetrics) ObserveRequest(op, status string, _ int64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[op+"/"+status]++
}

func (m *recordingMetrics) ObserveReconstruction(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconstructions++
}

func (m *recordingMetrics) ObserveParityUpdate(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parityUpdates[mode]++
}

func (m *recordingMetrics) SetProgress(phase string, done, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[phase] = [2]int64{done, total}
}
