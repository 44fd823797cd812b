package export

import (
	"fmt"
	"strings"

	"github.com/heimdex/heimdex-player/internal/timecode"
)

// GenerateSRT numbers the cues and shifts each one onto the record timeline.
// A cue linked to an exported scene moves with that scene; otherwise it moves
// with the first exported event of its video, or stays at zero.
func GenerateSRT(cues []Cue, timeline []Event, frameRate float64) string {
	fps := rate(frameRate)

	byScene := make(map[string]Event, len(timeline))
	byVideo := make(map[string]Event)
	for _, ev := range timeline {
		byScene[ev.SceneID] = ev
		if _, ok := byVideo[ev.VideoID]; !ok {
			byVideo[ev.VideoID] = ev
		}
	}

	var b strings.Builder
	n := 0
	for _, c := range cues {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}

		start := timecode.ToSeconds(c.StartTimecode, fps)
		end := timecode.ToSeconds(c.EndTimecode, fps)

		shift := 0.0
		if ev, ok := byScene[c.SceneID]; ok && c.SceneID != "" {
			shift = ev.RecordIn - ev.sceneStart
		} else if ev, ok := byVideo[c.VideoID]; ok {
			shift = ev.RecordIn
		}

		start += shift
		end += shift
		if start < 0 {
			start = 0
		}
		if end < start {
			end = start
		}

		n++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, timecode.ToSRT(start), timecode.ToSRT(end), text)
	}
	return b.String()
}
