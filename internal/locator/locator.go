// Package locator finds the scene or transcript segment covering a playback
// position. Intervals are half-open: a position equal to an end boundary
// belongs to whatever starts there, never to the interval that ends there.
package locator

import "github.com/heimdex/heimdex-player/internal/catalog"

// SceneAt returns the first scene in collection order with start <= t < end.
func SceneAt(scenes []*catalog.Scene, t, frameRate float64) *catalog.Scene {
	for _, sc := range scenes {
		if contains(sc.StartSeconds(frameRate), sc.EndSeconds(frameRate), t) {
			return sc
		}
	}
	return nil
}

// SegmentAt applies the same rule to transcript segments, independent of scenes.
func SegmentAt(segments []*catalog.Transcript, t, frameRate float64) *catalog.Transcript {
	for _, seg := range segments {
		if contains(seg.StartSeconds(frameRate), seg.EndSeconds(frameRate), t) {
			return seg
		}
	}
	return nil
}

func contains(start, end, t float64) bool {
	return start <= t && t < end
}
