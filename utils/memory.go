package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// MemorySize represents a memory size in bytes
type MemorySize int64

const (
	Byte MemorySize = 1
	KB   MemorySize = 1024 * Byte
	MB   MemorySize = 1024 * KB
	GB   MemorySize = 1024 * MB
	TB   MemorySize = 1024 * GB
)

// String returns a human-readable representation of the memory size
func (m MemorySize) String() string {
	if m <= 0 {
		return "0B"
	}

	formatValue := func(val float64, unit string) string {
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f%s", val, unit)
		}
		return fmt.Sprintf("%.2f%s", val, unit)
	}

	switch {
	case m >= TB:
		return formatValue(float64(m)/float64(TB), "T")
	case m >= GB:
		return formatValue(float64(m)/float64(GB), "G")
	case m >= MB:
		return formatValue(float64(m)/float64(MB), "M")
	case m >= KB:
		return formatValue(float64(m)/float64(KB), "K")
	default:
		return fmt.Sprintf("%dB", m)
	}
}

func (m MemorySize) Bytes() int64 {
	return int64(m)
}

// ParseMemorySize parses a JVM style size like "512m", "2G" or "1073741824".
func ParseMemorySize(s string) (MemorySize, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0, fmt.Errorf("empty memory size string")
	}

	multiplier := Byte
	valueStr := s[:len(s)-1]

	switch strings.ToUpper(s[len(s)-1:]) {
	case "T":
		multiplier = TB
	case "G":
		multiplier = GB
	case "M":
		multiplier = MB
	case "K":
		multiplier = KB
	case "B":
	default:
		valueStr = s
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid memory size: %s", s)
	}

	return MemorySize(value * float64(multiplier)), nil
}
