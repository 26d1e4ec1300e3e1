package raid

import "fmt"

// xorInto sets dst[i] ^= src[i] for every byte of dst.
// src must be at least as long as dst.
func xorInto(dst, src []byte) {
	if len(src) < len(dst) {
		panic(fmt.Sprintf("raid: xor source too short (%d < %d)", len(src), len(dst)))
	}
	src = src[:len(dst)]
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// XORBlocks returns the byte-wise XOR of the given equally sized blocks.
// The result has the length of the first block; it is nil for no input.
func XORBlocks(blocks ...[]byte) []byte {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]byte, len(blocks[0]))
	for _, b := range blocks {
		xorInto(out, b)
	}
	return out
}
