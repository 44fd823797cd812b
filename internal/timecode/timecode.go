// Package timecode converts between HH:MM:SS:FF timecode strings and
// floating-point seconds. Malformed input is normalized to zero rather than
// reported as an error.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Default is the frame rate used when none (or a non-positive one) is given.
	Default = 30.0

	// Zero is the timecode returned for negative or non-numeric input.
	Zero = "00:00:00:00"

	// frameEpsilon absorbs float error so that F/fps*fps floors back to F.
	frameEpsilon = 1e-6
)

// ToSeconds parses "HH:MM:SS:FF" into seconds at the given frame rate.
// Any other shape, including the empty string, yields 0.
func ToSeconds(tc string, frameRate float64) float64 {
	fps := normalizeRate(frameRate)

	parts := strings.Split(strings.TrimSpace(tc), ":")
	if len(parts) != 4 {
		return 0
	}

	var fields [4]int
	for i, p := range parts {
		n, ok := parseField(p)
		if !ok {
			return 0
		}
		fields[i] = n
	}

	return float64(fields[0])*3600 + float64(fields[1])*60 + float64(fields[2]) + float64(fields[3])/fps
}

// ToTimecode renders seconds as "HH:MM:SS:FF". Every field is floored.
// Negative, NaN and infinite values yield Zero.
func ToTimecode(seconds, frameRate float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return Zero
	}
	fps := normalizeRate(frameRate)

	whole := math.Floor(seconds + frameEpsilon/fps)
	frames := int(math.Floor((seconds-whole)*fps + frameEpsilon))
	maxFrame := int(math.Ceil(fps)) - 1
	if frames < 0 {
		frames = 0
	}
	if frames > maxFrame {
		frames = maxFrame
	}

	total := int64(whole)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}

// Valid reports whether tc has the four-field numeric shape ToSeconds accepts.
func Valid(tc string) bool {
	parts := strings.Split(strings.TrimSpace(tc), ":")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if _, ok := parseField(p); !ok {
			return false
		}
	}
	return true
}

// Duration returns max(0, end-start) in seconds for a pair of timecodes.
func Duration(start, end string, frameRate float64) float64 {
	d := ToSeconds(end, frameRate) - ToSeconds(start, frameRate)
	if d < 0 {
		return 0
	}
	return d
}

// ToSRT renders seconds as an SRT cue time "HH:MM:SS,mmm".
func ToSRT(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00,000"
	}
	totalMs := int64(math.Round(seconds * 1000))
	ms := totalMs % 1000
	totalSecs := totalMs / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", totalSecs/3600, (totalSecs%3600)/60, totalSecs%60, ms)
}

// Millis converts seconds to whole milliseconds, rounding to nearest.
func Millis(seconds float64) int {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return int(math.Round(seconds * 1000))
}

// FromMillis converts milliseconds to seconds.
func FromMillis(ms int) float64 {
	return float64(ms) / 1000
}

func parseField(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeRate(frameRate float64) float64 {
	if math.IsNaN(frameRate) || math.IsInf(frameRate, 0) || frameRate <= 0 {
		return Default
	}
	return frameRate
}
