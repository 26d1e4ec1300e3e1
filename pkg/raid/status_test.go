package raid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceSetStatus(t *testing.T) {
	o := defaultOpts(LevelParity, 3)
	o.missing = 1
	set, _, _ := newTestSet(t, o)

	st := set.Status()
	assert.Equal(t, "raid4", st.Level)
	assert.Equal(t, int64(4), st.BlockSize)
	assert.Equal(t, int64(16), st.Stripes)
	assert.Equal(t, int64(16*4*2), st.LogicalSize)
	assert.True(t, st.Degraded)
	assert.False(t, st.Rebuilding)
	assert.Len(t, st.Slots, 3)
	assert.Equal(t, SlotStatus{Index: 1, Path: "MISSING", State: "missing"}, st.Slots[1])
	assert.Equal(t, int64(64), st.Slots[0].Size)
}
