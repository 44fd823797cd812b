package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/player"
	"github.com/heimdex/heimdex-player/internal/selection"
)

type fakeSource struct {
	scenes      map[string][]*catalog.Scene
	transcripts map[string][]*catalog.Transcript
	err         error
}

func (f *fakeSource) Scenes(_ context.Context, id string) ([]*catalog.Scene, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scenes[id], nil
}

func (f *fakeSource) Transcripts(_ context.Context, id string) ([]*catalog.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transcripts[id], nil
}

func newSource() *fakeSource {
	return &fakeSource{
		scenes: map[string][]*catalog.Scene{
			"v1": {
				{ID: "a", SceneNumber: 1, StartTimecode: "00:00:00:00", EndTimecode: "00:00:05:00", Description: "Opening wide shot", EvaluationTag: "good"},
				{ID: "b", SceneNumber: 2, StartTimecode: "00:00:05:00", EndTimecode: "00:00:08:00", Description: "Close up", EvaluationTag: "bad"},
				{ID: "c", SceneNumber: 3, StartTimecode: "00:00:08:00", EndTimecode: "00:00:12:00", Description: "Wide pan", EvaluationTag: "good"},
			},
			"v2": {
				{ID: "x", SceneNumber: 1, StartTimecode: "00:00:00:00", EndTimecode: "00:00:02:00"},
			},
		},
		transcripts: map[string][]*catalog.Transcript{
			"v1": {
				{StartTimecode: "00:00:01:00", EndTimecode: "00:00:03:00", Text: "hello"},
				{StartTimecode: "00:00:03:00", EndTimecode: "00:00:06:00", Text: "crossing"},
			},
		},
	}
}

type stubMedia struct {
	pos    float64
	paused bool
	pauses int
}

func (m *stubMedia) CurrentTime() float64 { return m.pos }
func (m *stubMedia) Seek(t float64)       { m.pos = t }
func (m *stubMedia) Play() error          { m.paused = false; return nil }
func (m *stubMedia) Pause()               { m.paused = true; m.pauses++ }
func (m *stubMedia) Paused() bool         { return m.paused }
func (m *stubMedia) Ready() bool          { return true }

type stepScheduler struct {
	jobs []*stepJob
}

type stepJob struct {
	fn      func()
	stopped bool
}

func (s *stepScheduler) Every(_ time.Duration, fn func()) func() {
	j := &stepJob{fn: fn}
	s.jobs = append(s.jobs, j)
	return func() { j.stopped = true }
}

func (s *stepScheduler) fire() {
	for _, j := range append([]*stepJob(nil), s.jobs...) {
		if !j.stopped {
			j.fn()
		}
	}
}

type recorder struct {
	snapshots  []selection.Snapshot
	highlights []string
	displayed  []string
	subtitles  []string
	notices    []string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		SelectionChanged: func(s selection.Snapshot) { r.snapshots = append(r.snapshots, s) },
		HighlightScene:   func(sc *catalog.Scene) { r.highlights = append(r.highlights, sc.ID) },
		SceneDisplayed: func(sc *catalog.Scene) {
			id := ""
			if sc != nil {
				id = sc.ID
			}
			r.displayed = append(r.displayed, id)
		},
		SubtitleChanged: func(t *catalog.Transcript) {
			text := ""
			if t != nil {
				text = t.Text
			}
			r.subtitles = append(r.subtitles, text)
		},
		Notify: func(msg string) { r.notices = append(r.notices, msg) },
	}
}

func (r *recorder) last() selection.Snapshot {
	return r.snapshots[len(r.snapshots)-1]
}

type harness struct {
	ws    *Workspace
	ctrl  *player.Controller
	media *stubMedia
	sched *stepScheduler
	rec   *recorder
	src   *fakeSource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{media: &stubMedia{paused: true}, sched: &stepScheduler{}, rec: &recorder{}, src: newSource()}
	h.ctrl = player.NewController(h.media, player.Options{Scheduler: h.sched, FrameRate: 30})
	h.ws = New(h.src, h.ctrl, Options{FrameRate: 30, Hooks: h.rec.hooks()})
	h.ctrl.SetCallbacks(player.Callbacks{SceneComplete: h.ws.SceneComplete})

	if err := h.ws.LoadVideo(context.Background(), "v1"); err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}
	return h
}

func TestWorkspace_SelectionSnapshot(t *testing.T) {
	h := newHarness(t)

	if err := h.ws.Select("a", "c"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	snap := h.rec.last()
	if snap.Stats.Count != 2 || snap.Stats.TotalSeconds != 9 || snap.Stats.TotalTimecode != "00:00:09:00" {
		t.Errorf("stats = %+v, want count 2, 9s", snap.Stats)
	}
	if snap.SelectAll != selection.Indeterminate {
		t.Errorf("SelectAll = %s, want indeterminate", snap.SelectAll)
	}
	if !snap.Actions.CanPlay || !snap.Actions.CanExport {
		t.Errorf("actions disabled with a selection: %+v", snap.Actions)
	}

	if err := h.ws.Select("zzz"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("Select(unknown) error = %v, want ErrUnknownScene", err)
	}
	if got := h.ws.Snapshot().Stats.Count; got != 2 {
		t.Errorf("count after rejected select = %d, want 2", got)
	}

	h.ws.DeselectAll()
	if snap := h.rec.last(); snap.Stats.Count != 0 || snap.Actions.CanPlay {
		t.Errorf("after DeselectAll: %+v", snap)
	}
}

func TestWorkspace_FilterDrivesVisibleCounts(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("a", "b")

	h.ws.SetFilter(Filter{Tag: "good"})
	snap := h.rec.last()
	if snap.Stats.Count != 2 || snap.Stats.VisibleSelected != 1 {
		t.Errorf("stats = %+v, want count 2 visible 1", snap.Stats)
	}
	if snap.SelectAll != selection.Indeterminate {
		t.Errorf("SelectAll = %s, want indeterminate", snap.SelectAll)
	}

	h.ws.SelectAllVisible()
	if snap := h.rec.last(); snap.SelectAll != selection.Checked || snap.Stats.Count != 3 {
		t.Errorf("after select all visible: %+v", snap)
	}
	h.ws.SelectAllVisible()
	if snap := h.rec.last(); snap.Stats.Count != 1 || snap.IDs[0] != "b" {
		t.Errorf("toggle off should keep hidden b: %+v", snap)
	}

	h.ws.SetFilter(Filter{Query: "nothing matches"})
	if snap := h.rec.last(); snap.SelectAll != selection.Unchecked {
		t.Errorf("SelectAll with no visible rows = %s, want unchecked", snap.SelectAll)
	}

	h.ws.SetFilter(Filter{Query: "wide"})
	if got := len(h.ws.VisibleScenes()); got != 2 {
		t.Errorf("visible scenes for 'wide' = %d, want 2", got)
	}
	h.ws.SetFilter(Filter{Query: "2"})
	if v := h.ws.VisibleScenes(); len(v) != 1 || v[0].ID != "b" {
		t.Errorf("scene number query = %v, want b", v)
	}
}

func TestWorkspace_VideoChangeClearsSelection(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("a")

	if err := h.ws.LoadVideo(context.Background(), "v1"); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if h.ws.Snapshot().Stats.Count != 1 {
		t.Error("reloading the same video dropped the selection")
	}

	if err := h.ws.LoadVideo(context.Background(), "v2"); err != nil {
		t.Fatalf("LoadVideo(v2) error = %v", err)
	}
	if h.ws.Snapshot().Stats.Count != 0 {
		t.Error("selection survived a video change")
	}
}

func TestWorkspace_LoadFailure(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("a")
	h.src.err = errors.New("connection refused")

	if err := h.ws.LoadVideo(context.Background(), "v2"); err == nil {
		t.Fatal("LoadVideo() error = nil")
	}
	if len(h.rec.notices) != 1 {
		t.Errorf("notices = %v, want one", h.rec.notices)
	}
	if h.ws.VideoID() != "" || len(h.ws.Scenes()) != 0 || len(h.ws.Transcripts()) != 0 {
		t.Error("collections not reset after failed load")
	}
	if h.rec.last().Stats.Count != 0 {
		t.Error("selection not cleared after failed load")
	}
	if _, err := h.ws.PlaySelected(); !errors.Is(err, ErrNoVideo) {
		t.Errorf("PlaySelected() error = %v, want ErrNoVideo", err)
	}
}

func TestWorkspace_PlaySelectedRunsInStartOrder(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("c", "a")

	q, err := h.ws.PlaySelected()
	if err != nil {
		t.Fatalf("PlaySelected() error = %v", err)
	}

	h.media.pos = 5
	h.sched.fire()
	h.media.pos = 12
	h.sched.fire()

	select {
	case <-q.Done():
	default:
		t.Fatalf("queue not exhausted, cursor = %d", q.Cursor())
	}
	if got := h.rec.highlights; len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("highlights = %v, want [a c]", got)
	}
	if h.media.pauses != 2 {
		t.Errorf("pauses = %d, want 2", h.media.pauses)
	}
}

func TestWorkspace_ManualActionFreezesQueue(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("a", "b", "c")

	q, err := h.ws.PlaySelected()
	if err != nil {
		t.Fatalf("PlaySelected() error = %v", err)
	}

	h.media.pos = 2
	h.ws.Stop()
	h.media.pos = 6
	h.sched.fire()

	if q.Cursor() != 1 || q.Exhausted() {
		t.Errorf("queue moved after stop: cursor = %d", q.Cursor())
	}

	h.ws.PlayScene("b")
	h.media.pos = 8
	h.sched.fire()
	if q.Cursor() != 1 {
		t.Errorf("single scene completion advanced the queue: cursor = %d", q.Cursor())
	}
	if h.ws.Queue() != q {
		t.Error("frozen queue is no longer inspectable")
	}

	if _, err := h.ws.PlayScene("nope"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("PlayScene(unknown) error = %v", err)
	}
}

func TestWorkspace_NewPlaySelectedSupersedes(t *testing.T) {
	h := newHarness(t)
	h.ws.Select("a", "b")
	first, _ := h.ws.PlaySelected()

	h.ws.Deselect("a")
	second, err := h.ws.PlaySelected()
	if err != nil {
		t.Fatalf("PlaySelected() error = %v", err)
	}
	if h.ws.Queue() != second || first == second {
		t.Fatal("second queue did not replace the first")
	}

	h.media.pos = 8
	h.sched.fire()
	if first.Cursor() != 1 {
		t.Errorf("superseded queue advanced: cursor = %d", first.Cursor())
	}
	if !second.Exhausted() {
		t.Error("current queue did not finish")
	}

	h.ws.DeselectAll()
	if _, err := h.ws.PlaySelected(); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("PlaySelected(empty) error = %v", err)
	}
}

func TestWorkspace_MirrorTime(t *testing.T) {
	h := newHarness(t)

	for _, pos := range []float64{1.5, 2, 4, 5, 13} {
		h.ws.MirrorTime(pos)
	}

	want := []string{"a", "b", ""}
	if len(h.rec.displayed) != len(want) {
		t.Fatalf("displayed = %v, want %v", h.rec.displayed, want)
	}
	for i := range want {
		if h.rec.displayed[i] != want[i] {
			t.Errorf("displayed[%d] = %q, want %q", i, h.rec.displayed[i], want[i])
		}
	}

	wantSubs := []string{"hello", "hello", "crossing", "crossing", ""}
	if len(h.rec.subtitles) != len(wantSubs) {
		t.Fatalf("subtitles = %v, want %v", h.rec.subtitles, wantSubs)
	}
	for i := range wantSubs {
		if h.rec.subtitles[i] != wantSubs[i] {
			t.Errorf("subtitles[%d] = %q, want %q", i, h.rec.subtitles[i], wantSubs[i])
		}
	}
}

func TestWorkspace_MirrorTimeAcrossReload(t *testing.T) {
	h := newHarness(t)
	h.ws.MirrorTime(1)

	reloaded := make([]*catalog.Scene, 0, len(h.src.scenes["v1"]))
	for _, sc := range h.src.scenes["v1"] {
		cp := *sc
		reloaded = append(reloaded, &cp)
	}
	h.src.scenes["v1"] = reloaded
	if err := h.ws.LoadVideo(context.Background(), "v1"); err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}

	h.ws.MirrorTime(2)
	if len(h.rec.displayed) != 1 || h.rec.displayed[0] != "a" {
		t.Errorf("displayed = %v, want [a] (same scene after reload)", h.rec.displayed)
	}
	if h.ws.Displayed() != reloaded[0] {
		t.Error("Displayed() still points at the scene from before the reload")
	}

	h.ws.MirrorTime(6)
	if len(h.rec.displayed) != 2 || h.rec.displayed[1] != "b" {
		t.Errorf("displayed = %v, want [a b]", h.rec.displayed)
	}
}
