// Package bytesize provides parsing and formatting of human-readable byte
// sizes for configuration values and CLI output.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize represents a size in bytes that can be unmarshaled from
// human-readable strings like "50Mi", "1Gi", "100MB", or plain numbers.
//
// Supported formats:
//   - Plain numbers: 1024, 52428800
//   - Binary units (×1024): Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
//   - Decimal units (×1000): K/KB, M/MB, G/GB, T/TB
//   - Bytes: B
type ByteSize uint64

// Common byte size constants
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

// Parse parses a human-readable byte size string into a ByteSize value.
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	// Split the numeric prefix from the unit suffix.
	split := len(s)
	for i := 0; i < len(s); i++ {
		if (s[i] < '0' || s[i] > '9') && s[i] != '.' {
			split = i
			break
		}
	}

	num := s[:split]
	if num == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	multiplier, err := unitMultiplier(strings.TrimSpace(s[split:]))
	if err != nil {
		return 0, err
	}

	// A fractional count only makes sense scaled by a unit, but accept it
	// uniformly and truncate to whole bytes.
	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", num)
		}
		return ByteSize(f * float64(multiplier)), nil
	}

	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", num)
	}
	return ByteSize(n) * multiplier, nil
}

// unitMultiplier resolves a unit suffix: an optional k/m/g/t magnitude, an
// optional "i" marking binary scaling, and an optional trailing "b".
func unitMultiplier(unit string) (ByteSize, error) {
	u := strings.ToLower(unit)

	// "b" and "" both mean plain bytes; otherwise a trailing "b" is noise
	// ("kb", "kib").
	if u == "" || u == "b" {
		return B, nil
	}
	u = strings.TrimSuffix(u, "b")

	scale := KB
	if strings.HasSuffix(u, "i") {
		scale = KiB
		u = strings.TrimSuffix(u, "i")
	}

	var exp int
	switch u {
	case "k":
		exp = 1
	case "m":
		exp = 2
	case "g":
		exp = 3
	case "t":
		exp = 4
	default:
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	multiplier := B
	for i := 0; i < exp; i++ {
		multiplier *= scale
	}
	return multiplier, nil
}

// UnmarshalText implements encoding.TextUnmarshaler for ByteSize.
// This allows ByteSize to be used directly in structs with mapstructure.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler for ByteSize.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// formatUnits is the formatting scale, largest first.
var formatUnits = []struct {
	value  ByteSize
	suffix string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// String returns a human-readable representation of the byte size.
func (b ByteSize) String() string {
	for _, u := range formatUnits {
		if b >= u.value {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.value), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}

// Int64 returns the ByteSize as an int64.
// Note: this may overflow for very large values.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
