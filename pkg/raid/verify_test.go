package raid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("ConsistentAfterWrites", func(t *testing.T) {
		ta := newTestArray(t, defaultOpts(LevelParity, 4))
		require.NoError(t, ta.Write(ctx, fill(3, int(ta.Size())), 0))

		report, err := Verify(ctx, ta.set, ProcedureOptions{})
		require.NoError(t, err)
		assert.True(t, report.Consistent())
		assert.Equal(t, ta.set.StripeCount(), report.Stripes)
		assert.Empty(t, report.Mismatches)
	})

	t.Run("DetectsCorruption", func(t *testing.T) {
		ta := newTestArray(t, defaultOpts(LevelParity, 4))
		require.NoError(t, ta.Write(ctx, fill(4, int(ta.Size())), 0))

		// Flip one byte of data in stripe 2 and one byte of parity in stripe 5.
		for _, c := range []struct {
			dev int
			off int64
		}{{1, 2*4 + 1}, {3, 5 * 4}} {
			b := ta.mems[c.dev].Bytes()[c.off]
			_, err := ta.mems[c.dev].WriteAt([]byte{^b}, c.off)
			require.NoError(t, err)
		}

		writesBefore := ta.totalWrites()
		report, err := Verify(ctx, ta.set, ProcedureOptions{})
		require.NoError(t, err)
		assert.False(t, report.Consistent())
		assert.Equal(t, int64(2), report.Count)
		assert.Equal(t, []int64{2, 5}, report.Mismatches)

		assert.Equal(t, writesBefore, ta.totalWrites(), "verify must not write")
	})

	t.Run("RefusesStripe", func(t *testing.T) {
		set, _, _ := newTestSet(t, defaultOpts(LevelStripe, 2))
		_, err := Verify(ctx, set, ProcedureOptions{})
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("RefusesDegraded", func(t *testing.T) {
		o := defaultOpts(LevelParity, 3)
		o.missing = 0
		set, _, _ := newTestSet(t, o)
		_, err := Verify(ctx, set, ProcedureOptions{})
		assert.ErrorIs(t, err, ErrDegraded)
	})
}
