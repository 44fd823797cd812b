// Package selection tracks the set of scenes marked for batch operations and
// derives the aggregate figures the browsing surface displays for it.
package selection

import (
	"sort"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/timecode"
)

// Set is an unordered set of scene IDs. The zero value is not usable; call New.
type Set struct {
	ids map[string]struct{}
}

func New() *Set {
	return &Set{ids: make(map[string]struct{})}
}

func (s *Set) Add(id string) {
	s.ids[id] = struct{}{}
}

func (s *Set) Remove(id string) {
	delete(s.ids, id)
}

func (s *Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Clear() {
	clear(s.ids)
}

func (s *Set) Len() int {
	return len(s.ids)
}

// IDs returns the members in lexical order.
func (s *Set) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Retain drops every member not present in scenes.
func (s *Set) Retain(scenes []*catalog.Scene) {
	known := make(map[string]struct{}, len(scenes))
	for _, sc := range scenes {
		known[sc.ID] = struct{}{}
	}
	for id := range s.ids {
		if _, ok := known[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Selected returns the selected scenes in collection order.
func (s *Set) Selected(scenes []*catalog.Scene) []*catalog.Scene {
	var out []*catalog.Scene
	for _, sc := range scenes {
		if s.Contains(sc.ID) {
			out = append(out, sc)
		}
	}
	return out
}

// Visible reports whether a scene passes the current table filter.
type Visible func(*catalog.Scene) bool

// All is the Visible predicate of an unfiltered table.
func All(*catalog.Scene) bool { return true }

type Stats struct {
	Count           int     `json:"count"`
	TotalSeconds    float64 `json:"total_seconds"`
	TotalTimecode   string  `json:"total_timecode"`
	VisibleSelected int     `json:"visible_selected"`
}

// Stats summarizes the selection against the loaded scenes. It does not mutate the set.
func (s *Set) Stats(scenes []*catalog.Scene, visible Visible, frameRate float64) Stats {
	if visible == nil {
		visible = All
	}

	st := Stats{Count: s.Len()}
	for _, sc := range scenes {
		if !s.Contains(sc.ID) {
			continue
		}
		st.TotalSeconds += sc.Duration(frameRate)
		if visible(sc) {
			st.VisibleSelected++
		}
	}
	st.TotalTimecode = timecode.ToTimecode(st.TotalSeconds, frameRate)
	return st
}

type TriState int

const (
	Unchecked TriState = iota
	Checked
	Indeterminate
)

func (t TriState) String() string {
	switch t {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

func (t TriState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// SelectAll computes the select-all checkbox state over the visible rows.
// Hidden selections never influence it.
func (s *Set) SelectAll(scenes []*catalog.Scene, visible Visible) TriState {
	if visible == nil {
		visible = All
	}

	var rows, selected int
	for _, sc := range scenes {
		if !visible(sc) {
			continue
		}
		rows++
		if s.Contains(sc.ID) {
			selected++
		}
	}

	switch {
	case rows == 0 || selected == 0:
		return Unchecked
	case selected == rows:
		return Checked
	default:
		return Indeterminate
	}
}

// Actions are the enable flags of selection-dependent buttons.
type Actions struct {
	CanPlay   bool `json:"can_play"`
	CanExport bool `json:"can_export"`
	CanDelete bool `json:"can_delete"`
}

func ActionsFor(st Stats) Actions {
	enabled := st.Count > 0
	return Actions{CanPlay: enabled, CanExport: enabled, CanDelete: enabled}
}

// Snapshot is everything a table collaborator needs to redraw after a mutation.
type Snapshot struct {
	IDs       []string `json:"ids"`
	Stats     Stats    `json:"stats"`
	SelectAll TriState `json:"select_all"`
	Actions   Actions  `json:"actions"`
}

func (s *Set) Snapshot(scenes []*catalog.Scene, visible Visible, frameRate float64) Snapshot {
	st := s.Stats(scenes, visible, frameRate)
	return Snapshot{
		IDs:       s.IDs(),
		Stats:     st,
		SelectAll: s.SelectAll(scenes, visible),
		Actions:   ActionsFor(st),
	}
}
