// Package bytesize parses and prints human-readable byte sizes such as the
// array block size ("64KiB") or a read length ("1.5Mi").
package bytesize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. In configuration it accepts a plain number or
// a number with a unit: binary (Ki, Mi, Gi, Ti, optionally with a trailing B)
// or decimal (K, M, G, T, optionally with a trailing B). Units ignore case.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var errEmpty = errors.New("empty byte size string")

// multiplier resolves a lower-cased unit suffix.
func multiplier(unit string) (ByteSize, bool) {
	unit = strings.TrimSuffix(unit, "b")
	if unit == "" {
		return B, true
	}
	binary := strings.HasSuffix(unit, "i")
	unit = strings.TrimSuffix(unit, "i")
	if len(unit) != 1 {
		return 0, false
	}

	exp := strings.IndexByte("kmgt", unit[0]) + 1
	if exp == 0 {
		return 0, false
	}
	base := KB
	if binary {
		base = KiB
	}
	m := B
	for range exp {
		m *= base
	}
	return m, true
}

// ParseByteSize parses s, for example "4096", "64KiB", "1.5Mi" or "2 GB".
// Fractional values are truncated to whole bytes.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}

	split := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	num, unit := s, ""
	if split >= 0 {
		num, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	mult, ok := multiplier(strings.ToLower(unit))
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", num)
		}
		f *= float64(mult)
		if f >= math.MaxUint64 {
			return 0, fmt.Errorf("byte size %q overflows", s)
		}
		return ByteSize(f), nil
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", num)
	}
	if n > math.MaxUint64/uint64(mult) {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText lets ByteSize fields decode from YAML, env vars and flags.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String prints b in the largest binary unit that fits. Exact multiples have
// no fraction ("4KiB"), so block sizes survive a round trip through a file.
func (b ByteSize) String() string {
	for _, u := range []struct {
		size   ByteSize
		suffix string
	}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		switch {
		case b < u.size:
			continue
		case b%u.size == 0:
			return strconv.FormatUint(uint64(b/u.size), 10) + u.suffix
		default:
			return strconv.FormatFloat(float64(b)/float64(u.size), 'f', 2, 64) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(b), 10) + "B"
}

// MarshalText writes b in the form String prints, which ParseByteSize reads.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Int64 returns b as an int64. Sizes above 8EiB wrap.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
