package raid

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittoraid/pkg/raid/device"
)

// ============================================================================
// Scenarios
// ============================================================================

func TestParityWriteSpanningStripe(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 4))

	data := bytes.Repeat([]byte{0xAA}, 12)
	require.NoError(t, ta.Write(ctx, data, 0))

	// One block per data device; parity = 0xAA ^ 0xAA ^ 0xAA over zeros.
	for d := range 3 {
		assert.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA}, ta.block(d, 0), "device %d", d)
	}
	assert.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA}, ta.block(3, 0))

	got := make([]byte, 12)
	require.NoError(t, ta.Read(ctx, got, 0))
	assert.Equal(t, data, got)
}

func TestDegradedReadReconstructsFromSurvivors(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	set, mems, _ := newTestSet(t, o)

	// Seed consistent contents directly on the devices, then drop device 1.
	for s := range int64(16) {
		var blocks [][]byte
		for d := range 3 {
			b := fill(uint64(s)*10+uint64(d), 4)
			_, err := mems[d].WriteAt(b, s*4)
			require.NoError(t, err)
			blocks = append(blocks, b)
		}
		_, err := mems[3].WriteAt(XORBlocks(blocks...), s*4)
		require.NoError(t, err)
	}

	healthy, err := New(set, Options{})
	require.NoError(t, err)
	want := make([]byte, healthy.Size())
	require.NoError(t, healthy.Read(ctx, want, 0))

	o.missing = 1
	degradedSet, _, _ := newTestSet(t, o)
	for i, m := range mems {
		if i == 1 {
			continue
		}
		_, err := degradedSet.device(i).WriteAt(m.Bytes(), 0)
		require.NoError(t, err)
	}
	degraded, err := New(degradedSet, Options{})
	require.NoError(t, err)

	// Block 1 lives on device 1, stripe 0: reconstructed from devices 0, 2, 3.
	got := make([]byte, 4)
	require.NoError(t, degraded.Read(ctx, got, 4))
	assert.Equal(t, XORBlocks(mems[0].Bytes()[0:4], mems[2].Bytes()[0:4], mems[3].Bytes()[0:4]), got)
	assert.Equal(t, mems[1].Bytes()[0:4], got)

	// Whole-array degraded read is byte-identical to the healthy read.
	all := make([]byte, degraded.Size())
	require.NoError(t, degraded.Read(ctx, all, 0))
	assert.Equal(t, want, all)
}

func TestStripeWriteLandsOnBothDevices(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelStripe, 2)
	o.blockSize = 512
	o.devSize = 4096
	ta := newTestArray(t, o)

	data := append(bytes.Repeat([]byte{0x11}, 512), bytes.Repeat([]byte{0x22}, 512)...)
	require.NoError(t, ta.Write(ctx, data, 0))

	assert.Equal(t, data[:512], ta.mems[0].Bytes()[:512])
	assert.Equal(t, data[512:], ta.mems[1].Bytes()[:512])
	assert.Equal(t, int64(8192), ta.Size())
	assert.Equal(t, int64(16), ta.Blocks())
}

// ============================================================================
// Properties
// ============================================================================

func TestParityInvariantAfterWrites(t *testing.T) {
	ctx := context.Background()

	for _, n := range []int{2, 3, 5, 16} {
		o := defaultOpts(LevelParity, n)
		o.blockSize = 8
		o.devSize = 128
		ta := newTestArray(t, o)

		size := ta.Size()
		for i := range uint64(200) {
			buf := fill(i, int(1+i*7%uint64(size/2)))
			off := int64(i*13) % (size - int64(len(buf)) + 1)
			require.NoError(t, ta.Write(ctx, buf, off))
		}
		assertParity(t, ta.layout, ta.set.StripeCount(), ta.mems)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		level Level
		n     int
	}{
		{"Stripe", LevelStripe, 2},
		{"Parity3", LevelParity, 3},
		{"Parity6", LevelParity, 6},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := defaultOpts(tc.level, tc.n)
			o.blockSize = 16
			o.devSize = 1024
			ta := newTestArray(t, o)

			shadow := make([]byte, ta.Size())
			for i := range uint64(300) {
				length := int(i*37%300) + 1
				off := int64(i*101) % (ta.Size() - int64(length) + 1)
				buf := fill(i, length)

				require.NoError(t, ta.Write(ctx, buf, off))
				copy(shadow[off:], buf)

				got := make([]byte, length)
				require.NoError(t, ta.Read(ctx, got, off))
				require.Equal(t, buf, got)
			}

			all := make([]byte, ta.Size())
			require.NoError(t, ta.Read(ctx, all, 0))
			assert.Equal(t, shadow, all)
		})
	}
}

func TestBoundsPerformNoIO(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 4))
	size := ta.Size()

	cases := []struct {
		off int64
		n   int
	}{
		{size - 1, 2},
		{size, 1},
		{size + 100, 4},
		{-1, 4},
	}

	for _, c := range cases {
		buf := make([]byte, c.n)
		err := ta.Read(ctx, buf, c.off)
		assert.ErrorIs(t, err, ErrOutOfRange)
		err = ta.Write(ctx, buf, c.off)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
	assert.Zero(t, ta.totalIO())

	// The last byte is still addressable.
	require.NoError(t, ta.Write(ctx, []byte{7}, size-1))
}

func TestEmptyRequest(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 3))

	require.NoError(t, ta.Read(ctx, nil, 0))
	require.NoError(t, ta.Write(ctx, nil, ta.Size()))
	assert.Zero(t, ta.totalIO())
}

// ============================================================================
// Degraded Writes
// ============================================================================

func TestDegradedWriteToMissingDevice(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	o.missing = 1
	ta := newTestArray(t, o)

	data := fill(42, int(ta.Size()))
	require.NoError(t, ta.Write(ctx, data, 0))

	// Nothing was written to the absent device.
	assert.Equal(t, make([]byte, o.devSize), ta.mems[1].Bytes())

	got := make([]byte, len(data))
	require.NoError(t, ta.Read(ctx, got, 0))
	assert.Equal(t, data, got)
}

func TestDegradedWriteWithMissingParity(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	o.missing = 3
	ta := newTestArray(t, o)

	data := fill(7, 24)
	require.NoError(t, ta.Write(ctx, data, 4))

	got := make([]byte, len(data))
	require.NoError(t, ta.Read(ctx, got, 4))
	assert.Equal(t, data, got)

	// Data landed directly; parity reads were never needed.
	assert.Zero(t, ta.faults[3].Reads()+ta.faults[3].Writes())
}

func TestStripeMissingDeviceIsDataLoss(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelStripe, 2)
	o.missing = 1
	ta := newTestArray(t, o)

	// Block 0 is on the surviving device.
	require.NoError(t, ta.Write(ctx, []byte{1, 2, 3, 4}, 0))
	got := make([]byte, 4)
	require.NoError(t, ta.Read(ctx, got, 0))
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// Block 1 is on the missing device.
	assert.ErrorIs(t, ta.Read(ctx, got, 4), ErrDataLoss)
	assert.ErrorIs(t, ta.Write(ctx, got, 4), ErrDataLoss)
}

// ============================================================================
// Fault Injection
// ============================================================================

func TestFailedOldDataReadAbortsBeforeMutation(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 4))

	ta.faults[0].FailReads(device.ErrInjected)
	err := ta.Write(ctx, []byte{9, 9, 9, 9}, 0)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, device.ErrInjected)

	assert.Zero(t, ta.faults[0].Writes())
	assert.Zero(t, ta.faults[3].Writes())
}

func TestShortParityReadAbortsBeforeMutation(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 4))

	ta.faults[3].ShortReads(true)
	err := ta.Write(ctx, []byte{9, 9, 9, 9}, 4)
	require.ErrorIs(t, err, ErrIO)

	for _, f := range ta.faults {
		assert.Zero(t, f.Writes())
	}
	assert.Equal(t, make([]byte, 64), ta.mems[1].Bytes())
}

func TestMultiBlockFailureKeepsCompletedBlocks(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 4))

	// Blocks 0 and 1 succeed, block 2 fails on its old-data read.
	ta.faults[2].FailReads(device.ErrInjected)
	err := ta.Write(ctx, bytes.Repeat([]byte{0x5A}, 12), 0)
	require.ErrorIs(t, err, ErrIO)

	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 4), ta.block(0, 0))
	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 4), ta.block(1, 0))
	assert.Equal(t, make([]byte, 4), ta.block(2, 0))

	// Completed blocks kept parity consistent.
	ta.faults[2].FailReads(nil)
	assertParity(t, ta.layout, ta.set.StripeCount(), ta.mems)
}

func TestReadErrorIsReported(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelStripe, 2))

	ta.faults[1].FailReads(device.ErrInjected)
	err := ta.Read(ctx, make([]byte, 8), 0)
	require.ErrorIs(t, err, ErrIO)

	// The array keeps serving other devices.
	require.NoError(t, ta.Read(ctx, make([]byte, 4), 0))
}

func TestDegradedReadSurvivorFailure(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	o.missing = 0
	ta := newTestArray(t, o)

	ta.faults[3].FailReads(device.ErrInjected)
	err := ta.Read(ctx, make([]byte, 4), 0)
	assert.ErrorIs(t, err, ErrIO)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestNewRefusesPendingRebuild(t *testing.T) {
	o := defaultOpts(LevelParity, 3)
	o.rebuild = 2
	set, _, _ := newTestSet(t, o)

	_, err := New(set, Options{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFlushSyncsPresentDevices(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	o.missing = 2
	ta := newTestArray(t, o)

	require.NoError(t, ta.Flush(ctx))
	for i, m := range ta.mems {
		if i == 2 {
			assert.Zero(t, m.Syncs())
			continue
		}
		assert.Equal(t, 1, m.Syncs(), "device %d", i)
	}

	ta.faults[1].FailSync(device.ErrInjected)
	err := ta.Flush(ctx)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, device.ErrInjected)
}

func TestClosedArray(t *testing.T) {
	ctx := context.Background()
	ta := newTestArray(t, defaultOpts(LevelParity, 3))

	require.NoError(t, ta.Close())
	require.NoError(t, ta.Close())

	assert.ErrorIs(t, ta.Read(ctx, make([]byte, 4), 0), ErrClosed)
	assert.ErrorIs(t, ta.Write(ctx, make([]byte, 4), 0), ErrClosed)
	assert.ErrorIs(t, ta.Flush(ctx), ErrClosed)
}

func TestReaderAtWriterAt(t *testing.T) {
	ta := newTestArray(t, defaultOpts(LevelParity, 3))

	n, err := ta.WriteAt([]byte("hello"), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = ta.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	_, err = ta.ReadAt(buf, ta.Size())
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMetricsAreRecorded(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 4)
	o.missing = 0
	set, _, _ := newTestSet(t, o)

	m := newRecordingMetrics()
	arr, err := New(set, Options{Metrics: m})
	require.NoError(t, err)

	require.NoError(t, arr.Write(ctx, make([]byte, 8), 0)) // block 0 recompute, block 1 rmw
	require.NoError(t, arr.Read(ctx, make([]byte, 4), 0))  // reconstruction
	_ = arr.Read(ctx, make([]byte, 4), arr.Size())

	assert.Equal(t, 1, m.requests["write/ok"])
	assert.Equal(t, 1, m.requests["read/ok"])
	assert.Equal(t, 1, m.requests["read/out_of_range"])
	assert.Equal(t, 1, m.reconstructions)
	assert.Equal(t, 1, m.parityUpdates[ParityModeRecompute])
	assert.Equal(t, 1, m.parityUpdates[ParityModeRMW])
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentWritersKeepParity(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 5)
	o.blockSize = 16
	o.devSize = 16 * 32
	ta := newTestArray(t, o)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				seed := uint64(g*1000 + i)
				buf := fill(seed, int(seed%48)+1)
				off := int64(seed*29) % (ta.Size() - int64(len(buf)) + 1)
				if err := ta.Write(ctx, buf, off); err != nil {
					t.Errorf("write: %v", err)
					return
				}
				if err := ta.Read(ctx, make([]byte, len(buf)), off); err != nil {
					t.Errorf("read: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	assertParity(t, ta.layout, ta.set.StripeCount(), ta.mems)
}

func TestConcurrentDegradedReadsSeeWholeWrites(t *testing.T) {
	ctx := context.Background()
	o := defaultOpts(LevelParity, 3)
	o.missing = 0
	ta := newTestArray(t, o)

	a := bytes.Repeat([]byte{0x11}, 4)
	b := bytes.Repeat([]byte{0x22}, 4)
	require.NoError(t, ta.Write(ctx, a, 0))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			buf := a
			if i%2 == 1 {
				buf = b
			}
			if err := ta.Write(ctx, buf, 0); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		got := make([]byte, 4)
		for range 500 {
			if err := ta.Read(ctx, got, 0); err != nil {
				t.Errorf("read: %v", err)
				return
			}
			if !bytes.Equal(got, a) && !bytes.Equal(got, b) {
				t.Errorf("torn read: %x", got)
				return
			}
		}
	}()
	wg.Wait()
}
