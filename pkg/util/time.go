package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp parses SS.mmm, MM:SS or HH:MM:SS.mmm into a duration
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}
	return SecondsToDuration(total), nil
}

// SecondsToDuration converts fractional seconds to a time.Duration
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ParseFrameRate parses an ffprobe rational like "30000/1001". Anything
// unparseable is 0.
func ParseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
