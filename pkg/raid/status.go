package raid

// SlotStatus is a point-in-time view of one slot.
type SlotStatus struct {
	Index int    `json:"index" yaml:"index"`
	Path  string `json:"path" yaml:"path"`
	State string `json:"state" yaml:"state"`
	Size  int64  `json:"size" yaml:"size"`
}

// SetStatus is a point-in-time view of a device set, suitable for display.
type SetStatus struct {
	Level       string       `json:"level" yaml:"level"`
	BlockSize   int64        `json:"block_size" yaml:"block_size"`
	Devices     int          `json:"devices" yaml:"devices"`
	Stripes     int64        `json:"stripes" yaml:"stripes"`
	LogicalSize int64        `json:"logical_size" yaml:"logical_size"`
	Degraded    bool         `json:"degraded" yaml:"degraded"`
	Rebuilding  bool         `json:"rebuilding" yaml:"rebuilding"`
	Slots       []SlotStatus `json:"slots" yaml:"slots"`
}

// Status returns a snapshot of the set.
func (s *DeviceSet) Status() SetStatus {
	st := SetStatus{
		Level:       s.layout.Level.String(),
		BlockSize:   s.layout.BlockSize,
		Devices:     s.layout.Devices,
		Stripes:     s.stripes,
		LogicalSize: s.LogicalSize(),
	}
	for _, slot := range s.Slots() {
		switch slot.State {
		case SlotMissing:
			st.Degraded = true
		case SlotRebuilding:
			st.Rebuilding = true
		}
		st.Slots = append(st.Slots, SlotStatus{
			Index: slot.Index,
			Path:  slot.Path,
			State: slot.State.String(),
			Size:  slot.Size(),
		})
	}
	return st
}
