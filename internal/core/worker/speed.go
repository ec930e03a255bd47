package worker

import (
	"regexp"
	"strconv"
	"strings"
)

var speedRe = regexp.MustCompile(`(?i)([\d.]+)\s*(K|M|G)?i?B/s`)

// parseSpeedBytes converts a human-readable rate like "8.2MiB/s" or
// "512KiB/s" to bytes per second. Returns nil when the string does not
// look like a rate.
func parseSpeedBytes(speed string) *int64 {
	m := speedRe.FindStringSubmatch(speed)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}

	var multiplier float64 = 1
	switch strings.ToUpper(m[2]) {
	case "K":
		multiplier = 1024
	case "M":
		multiplier = 1024 * 1024
	case "G":
		multiplier = 1024 * 1024 * 1024
	}

	bytes := int64(value * multiplier)
	return &bytes
}
