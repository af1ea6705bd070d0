package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Binary size units (1024-based).
const (
	KB uint64 = 1024
	MB        = 1024 * KB
	GB        = 1024 * MB
	TB        = 1024 * GB
)

var sizeRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMGT]?B?)$`)

// ParseBytes converts a size string to bytes. Accepted forms: "1024",
// "64MB", "1.5GB". Units are case-insensitive; the B suffix is optional.
func ParseBytes(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	s = strings.ToUpper(strings.TrimSpace(s))

	matches := sizeRe.FindStringSubmatch(s)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid size: %s, expected format like '1024', '1KB', '1.5MB'", s)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s': %v", matches[1], err)
	}

	var multiplier uint64 = 1
	switch matches[2] {
	case "", "B":
		multiplier = 1
	case "KB", "K":
		multiplier = KB
	case "MB", "M":
		multiplier = MB
	case "GB", "G":
		multiplier = GB
	case "TB", "T":
		multiplier = TB
	default:
		return 0, fmt.Errorf("unsupported unit: %s", matches[2])
	}

	if num > float64(^uint64(0))/float64(multiplier) {
		return 0, fmt.Errorf("size overflow: %g * %d", num, multiplier)
	}
	return uint64(num * float64(multiplier)), nil
}

// FormatBytes renders a byte count with the largest fitting unit:
// 1024 -> "1KB", 1048576 -> "1MB".
func FormatBytes(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []struct {
		name string
		size uint64
	}{
		{"TB", TB},
		{"GB", GB},
		{"MB", MB},
		{"KB", KB},
		{"B", 1},
	}
	for _, unit := range units {
		if bytes >= unit.size {
			value := float64(bytes) / float64(unit.size)
			if value == float64(uint64(value)) {
				return fmt.Sprintf("%.0f%s", value, unit.name)
			}
			formatted := strings.TrimRight(fmt.Sprintf("%.2f", value), "0")
			formatted = strings.TrimRight(formatted, ".")
			return fmt.Sprintf("%s%s", formatted, unit.name)
		}
	}
	return fmt.Sprintf("%dB", bytes)
}

// MustParseBytes is ParseBytes that panics on malformed input.
func MustParseBytes(s string) uint64 {
	bytes, err := ParseBytes(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse bytes: %v", err))
	}
	return bytes
}
