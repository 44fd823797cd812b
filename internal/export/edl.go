package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-player/internal/timecode"
)

const DefaultTitle = "Heimdex Scene Export"

// BuildTimeline applies each video's timecode offset, clamps clip ends to the
// video duration, enforces a one-frame minimum, and lays the clips end to end
// on the record timeline.
func BuildTimeline(clips []Clip, frameRate float64) []Event {
	fps := rate(frameRate)
	minDuration := 1 / fps

	events := make([]Event, 0, len(clips))
	record := 0.0
	for i, c := range clips {
		offset := 0.0
		if c.TimecodeOffset != "" {
			offset = timecode.ToSeconds(c.TimecodeOffset, fps)
		}

		start := timecode.ToSeconds(c.StartTimecode, fps)
		in := start + offset
		out := timecode.ToSeconds(c.EndTimecode, fps) + offset

		if c.DurationSeconds > 0 {
			out = math.Min(out, offset+c.DurationSeconds)
		}

		duration := math.Max(0, out-in)
		if duration < minDuration {
			duration = minDuration
			out = in + minDuration
		}

		events = append(events, Event{
			Number:     i + 1,
			Reel:       ReelName(c.Filename),
			ClipName:   c.Filename,
			SceneID:    c.SceneID,
			VideoID:    c.VideoID,
			SourceIn:   in,
			SourceOut:  out,
			RecordIn:   record,
			RecordOut:  record + duration,
			sceneStart: start,
		})
		record += duration
	}
	return events
}

// GenerateEDL renders a CMX3600-style edit decision list.
func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := rate(frameRate)
	if title == "" {
		title = DefaultTitle
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame(frameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for _, ev := range events {
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", ev.Number, ev.Reel, "V",
				timecode.ToTimecode(ev.SourceIn, fps),
				timecode.ToTimecode(ev.SourceOut, fps),
				timecode.ToTimecode(ev.RecordIn, fps),
				timecode.ToTimecode(ev.RecordOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME: %s", ev.ClipName),
			"",
		)
	}

	return strings.Join(lines, "\n")
}

// ReelName is the first eight characters of the file stem, upper-cased.
func ReelName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.ToUpper(stem)
	if r := []rune(stem); len(r) > 8 {
		stem = string(r[:8])
	}
	if stem == "" || stem == "." {
		return "AX"
	}
	return stem
}

func isDropFrame(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

func rate(frameRate float64) float64 {
	if frameRate <= 0 || math.IsNaN(frameRate) {
		return timecode.Default
	}
	return frameRate
}
