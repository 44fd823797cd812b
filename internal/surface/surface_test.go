package surface

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/player"
)

const testOrigin = "http://127.0.0.1:8787"

type fakeSource struct {
	mu     sync.Mutex
	videos map[string]*catalog.Video
	scenes map[string][]*catalog.Scene
	err    error
	loads  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		videos: map[string]*catalog.Video{
			"v1": {ID: "v1", Filename: "a.mp4", DurationSeconds: 60},
			"v2": {ID: "v2", Filename: "b.mp4", DurationSeconds: 30},
		},
		scenes: map[string][]*catalog.Scene{
			"v1": {
				{ID: "s1", VideoID: "v1", StartTimecode: "00:00:00:00", EndTimecode: "00:00:00:03"},
				{ID: "s2", VideoID: "v1", StartTimecode: "00:00:01:00", EndTimecode: "00:00:01:03"},
			},
		},
	}
}

func (f *fakeSource) Video(_ context.Context, id string) (*catalog.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.videos[id], nil
}

func (f *fakeSource) Scenes(_ context.Context, id string) ([]*catalog.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scenes[id], nil
}

func (f *fakeSource) Transcripts(context.Context, string) ([]*catalog.Transcript, error) {
	return nil, nil
}

func (f *fakeSource) StreamURL(id string) string {
	return "http://127.0.0.1:8787/api/videos/" + id + "/stream"
}

type stepScheduler struct {
	mu   sync.Mutex
	jobs []func()
}

func (s *stepScheduler) Every(_ time.Duration, fn func()) func() {
	s.mu.Lock()
	s.jobs = append(s.jobs, fn)
	s.mu.Unlock()
	return func() {}
}

func (s *stepScheduler) fire() {
	s.mu.Lock()
	jobs := append([]func(){}, s.jobs...)
	s.mu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

func mustEncode(t *testing.T, origin string, m Message) []byte {
	t.Helper()
	frame, err := Encode(origin, m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return frame
}

// drain collects frames from l until it has been quiet for 50ms, for at most
// 250ms overall so a link that keeps sending cannot hold the test.
func drain(t *testing.T, l Link) []Message {
	t.Helper()
	var out []Message
	window := time.After(250 * time.Millisecond)
	for {
		select {
		case <-window:
			return out
		case f, ok := <-l.Frames():
			if !ok {
				return out
			}
			env, err := DecodeEnvelope(f)
			if err != nil {
				t.Fatalf("DecodeEnvelope() error = %v", err)
			}
			m, err := env.Message()
			if err != nil {
				t.Fatalf("Message() error = %v", err)
			}
			out = append(out, m)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	frame := mustEncode(t, testOrigin, PlayScene{Start: 10, End: 15, SceneID: "s1"})

	env, err := DecodeEnvelope(frame)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.Origin != testOrigin || env.Type != TypePlayScene {
		t.Errorf("envelope = %+v", env)
	}

	m, err := env.Message()
	if err != nil {
		t.Fatalf("Message() error = %v", err)
	}
	ps, ok := m.(PlayScene)
	if !ok || ps.Start != 10 || ps.End != 15 || ps.SceneID != "s1" {
		t.Errorf("decoded = %#v", m)
	}
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"origin":"o","type":"TIME_UPDATE","payload":{"currentTime":12.5}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	m, err := env.Message()
	if err != nil {
		t.Fatalf("Message() error = %v", err)
	}
	if tu, ok := m.(TimeUpdate); !ok || tu.CurrentTime != 12.5 {
		t.Errorf("decoded = %#v, want TimeUpdate{12.5}", m)
	}

	env, _ = DecodeEnvelope([]byte(`{"origin":"o","type":"RESET"}`))
	if m, err := env.Message(); err != nil || m.Type() != TypeReset {
		t.Errorf("RESET without payload = %v, %v", m, err)
	}
}

func TestEnvelope_UnknownType(t *testing.T) {
	env := Envelope{Origin: testOrigin, Type: "SELF_DESTRUCT"}
	if _, err := env.Message(); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Message() error = %v, want ErrUnknownType", err)
	}
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(testOrigin, nil)
	var got []Type
	d.Handle(TypeSeekPlay, func(m Message) { got = append(got, m.Type()) })

	tests := []struct {
		name  string
		frame []byte
		want  bool
	}{
		{"trusted", mustEncode(t, testOrigin, SeekPlay{Time: 3}), true},
		{"wrong origin", mustEncode(t, "http://evil.example", SeekPlay{Time: 3}), false},
		{"empty origin", mustEncode(t, "", SeekPlay{Time: 3}), false},
		{"unknown type", []byte(`{"origin":"` + testOrigin + `","type":"NOPE"}`), false},
		{"no handler", mustEncode(t, testOrigin, Reset{}), false},
		{"garbage", []byte("not json"), false},
		{"bad payload", []byte(`{"origin":"` + testOrigin + `","type":"SEEK_PLAY","payload":{"time":"soon"}}`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ok := d.Dispatch(tt.frame); ok != tt.want {
				t.Errorf("Dispatch() = %v, want %v", ok, tt.want)
			}
		})
	}

	if len(got) != 1 {
		t.Errorf("handler ran %d times, want 1", len(got))
	}
}

func TestPrimary_BuffersUntilReady(t *testing.T) {
	local, remote := Pipe()
	defer local.Close()

	p := NewPrimary(local, PrimaryOptions{Origin: testOrigin, ExpectedOrigin: testOrigin})
	p.LoadVideo("v1")
	p.PlayRange(1, 2, &catalog.Scene{ID: "s1"})
	p.SeekPlay(5)

	if p.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", p.Pending())
	}
	if msgs := drain(t, remote); len(msgs) != 0 {
		t.Fatalf("sent %d frames before ready", len(msgs))
	}

	p.dispatcher.Dispatch(mustEncode(t, testOrigin, PreviewReady{}))

	msgs := drain(t, remote)
	if len(msgs) != 3 {
		t.Fatalf("flushed %d frames, want 3", len(msgs))
	}
	if msgs[0].Type() != TypeLoadVideo || msgs[1].Type() != TypePlayScene || msgs[2].Type() != TypeSeekPlay {
		t.Errorf("flush order = %s, %s, %s", msgs[0].Type(), msgs[1].Type(), msgs[2].Type())
	}
	if ps := msgs[1].(PlayScene); ps.SceneID != "s1" {
		t.Errorf("PlayScene.SceneID = %q, want s1", ps.SceneID)
	}

	p.Reset()
	if msgs := drain(t, remote); len(msgs) != 1 || msgs[0].Type() != TypeReset {
		t.Errorf("after ready, Reset sent %v", msgs)
	}
}

func TestPrimary_ReloadResendsLastVideo(t *testing.T) {
	local, remote := Pipe()
	defer local.Close()

	readies := 0
	p := NewPrimary(local, PrimaryOptions{Origin: testOrigin, ExpectedOrigin: testOrigin, OnReady: func() { readies++ }})
	p.dispatcher.Dispatch(mustEncode(t, testOrigin, PreviewReady{}))
	p.LoadVideo("v1")
	p.LoadVideo("v2")
	drain(t, remote)

	p.dispatcher.Dispatch(mustEncode(t, testOrigin, PreviewReady{}))
	msgs := drain(t, remote)
	if len(msgs) != 1 {
		t.Fatalf("resent %d frames, want 1", len(msgs))
	}
	if lv := msgs[0].(LoadVideo); lv.VideoID != "v2" {
		t.Errorf("resent video = %s, want v2", lv.VideoID)
	}
	if readies != 2 {
		t.Errorf("OnReady called %d times, want 2", readies)
	}
}

func TestPrimary_PlaybackEndedAttribution(t *testing.T) {
	local, _ := Pipe()
	defer local.Close()

	var ended []player.Session
	p := NewPrimary(local, PrimaryOptions{
		Origin:          testOrigin,
		ExpectedOrigin:  testOrigin,
		OnPlaybackEnded: func(s player.Session) { ended = append(ended, s) },
	})

	endFrame := mustEncode(t, testOrigin, PlaybackEnded{})

	p.dispatcher.Dispatch(endFrame)
	if len(ended) != 0 {
		t.Fatal("end reported with no session")
	}

	s := p.PlayRange(1, 2, nil)
	p.dispatcher.Dispatch(endFrame)
	p.dispatcher.Dispatch(endFrame)
	if len(ended) != 1 || ended[0].Number != s.Number {
		t.Fatalf("ended = %v, want exactly session %d", ended, s.Number)
	}

	p.PlayRange(3, 4, nil)
	p.SeekPlay(10)
	p.dispatcher.Dispatch(endFrame)
	if len(ended) != 1 {
		t.Errorf("end after unbounded seek was reported")
	}

	p.dispatcher.Dispatch(mustEncode(t, "http://evil.example", PlaybackEnded{}))
	if len(ended) != 1 {
		t.Errorf("end from untrusted origin was reported")
	}
}

func TestPrimary_TimeUpdateMirrors(t *testing.T) {
	local, _ := Pipe()
	defer local.Close()

	var positions []float64
	p := NewPrimary(local, PrimaryOptions{
		Origin:         testOrigin,
		ExpectedOrigin: testOrigin,
		OnTimeUpdate:   func(t float64) { positions = append(positions, t) },
	})
	p.dispatcher.Dispatch(mustEncode(t, testOrigin, TimeUpdate{CurrentTime: 4.5}))
	p.dispatcher.Dispatch(mustEncode(t, "http://other", TimeUpdate{CurrentTime: 9}))

	if len(positions) != 1 || positions[0] != 4.5 {
		t.Errorf("positions = %v, want [4.5]", positions)
	}
}

func newTestPreview(t *testing.T, src *fakeSource, sched player.Scheduler) (*Preview, *player.VirtualMedia, Link) {
	t.Helper()
	local, remote := Pipe()
	t.Cleanup(func() { local.Close() })

	media := player.NewVirtualMedia(nil)
	p := NewPreview(local, media, src, PreviewOptions{
		Origin:         testOrigin,
		ExpectedOrigin: testOrigin,
		Scheduler:      sched,
		FrameRate:      30,
	})
	return p, media, remote
}

func TestPreview_LoadAndPlay(t *testing.T) {
	src := newFakeSource()
	sched := &stepScheduler{}
	p, media, _ := newTestPreview(t, src, sched)
	ctx := context.Background()

	p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
	if p.VideoID() != "v1" {
		t.Fatalf("VideoID() = %q, want v1", p.VideoID())
	}
	if !media.Ready() || media.Source() != src.StreamURL("v1") {
		t.Errorf("media ready=%v source=%q", media.Ready(), media.Source())
	}

	p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
	if src.loads != 1 {
		t.Errorf("repeated LOAD_VIDEO fetched again: loads = %d", src.loads)
	}

	p.Handle(ctx, mustEncode(t, testOrigin, PlayScene{Start: 10, End: 15, SceneID: "s2"}))
	if st := p.Controller().State(); st != player.PlayingBounded {
		t.Errorf("State() = %s, want playing_bounded", st)
	}
	if sc := p.Controller().Session().Scene; sc == nil || sc.ID != "s2" {
		t.Errorf("session scene = %v, want s2", sc)
	}

	p.Handle(ctx, mustEncode(t, testOrigin, SeekPlay{Time: 20}))
	if st := p.Controller().State(); st != player.PlayingUnbounded {
		t.Errorf("State() = %s, want playing_unbounded", st)
	}

	p.Handle(ctx, mustEncode(t, testOrigin, Reset{}))
	if p.VideoID() != "" || media.Source() != "" {
		t.Errorf("after RESET video=%q source=%q", p.VideoID(), media.Source())
	}
	if p.Controller().State() != player.Idle {
		t.Errorf("State() after RESET = %s, want idle", p.Controller().State())
	}
}

func TestPreview_RejectsUntrustedOrigin(t *testing.T) {
	src := newFakeSource()
	p, _, _ := newTestPreview(t, src, &stepScheduler{})
	ctx := context.Background()

	p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
	p.Handle(ctx, mustEncode(t, testOrigin, PlayScene{Start: 0, End: 5}))
	before := p.Controller().Session()

	evil := "http://evil.example"
	p.Handle(ctx, mustEncode(t, evil, LoadVideo{VideoID: "v2"}))
	p.Handle(ctx, mustEncode(t, evil, PlayScene{Start: 20, End: 25}))
	p.Handle(ctx, mustEncode(t, evil, Reset{}))

	if p.VideoID() != "v1" {
		t.Errorf("VideoID() = %q, want v1", p.VideoID())
	}
	after := p.Controller().Session()
	if after.Number != before.Number || after.Start != before.Start {
		t.Errorf("session changed from %+v to %+v", before, after)
	}
	if p.Controller().State() != player.PlayingBounded {
		t.Errorf("State() = %s, want playing_bounded", p.Controller().State())
	}
}

func TestPreview_LoadFailureResets(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection refused")
	p, media, _ := newTestPreview(t, src, &stepScheduler{})
	ctx := context.Background()

	p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
	if p.VideoID() != "" {
		t.Errorf("VideoID() = %q after failed load, want empty", p.VideoID())
	}
	if media.Ready() {
		t.Error("media ready after failed load")
	}

	p.Handle(ctx, mustEncode(t, testOrigin, PlayScene{Start: 0, End: 1}))
	if p.Controller().State() != player.Seeking {
		t.Errorf("State() = %s, want seeking (deferred until ready)", p.Controller().State())
	}
}

func TestPreview_EmitsPlaybackEndedAndTimeUpdate(t *testing.T) {
	src := newFakeSource()
	sched := &stepScheduler{}
	p, media, remote := newTestPreview(t, src, sched)
	ctx := context.Background()

	p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
	p.Handle(ctx, mustEncode(t, testOrigin, PlayScene{Start: 59.9, End: 59.95}))

	// The virtual clock runs in real time; wait until the end is passed.
	deadline := time.Now().Add(2 * time.Second)
	for media.CurrentTime() < 59.95 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p.Controller().TimeUpdate()
	sched.fire()

	msgs := drain(t, remote)
	var sawTime, sawEnded bool
	for _, m := range msgs {
		switch m.Type() {
		case TypeTimeUpdate:
			sawTime = true
		case TypePlaybackEnded:
			sawEnded = true
		}
	}
	if !sawTime || !sawEnded {
		t.Errorf("emitted %v, want TIME_UPDATE and PLAYBACK_ENDED", msgs)
	}
}

func TestPreview_LastSceneEndingAtVideoDuration(t *testing.T) {
	for _, end := range []float64{60, 61} {
		src := newFakeSource()
		sched := &stepScheduler{}
		p, media, remote := newTestPreview(t, src, sched)
		ctx := context.Background()

		p.Handle(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"}))
		p.Handle(ctx, mustEncode(t, testOrigin, PlayScene{Start: 59.9, End: end}))

		deadline := time.Now().Add(2 * time.Second)
		for !media.Ended() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		sched.fire()

		if st := p.Controller().State(); st != player.Idle {
			t.Errorf("end %v: State() = %s, want idle", end, st)
		}
		ended := 0
		for _, m := range drain(t, remote) {
			if m.Type() == TypePlaybackEnded {
				ended++
			}
		}
		if ended != 1 {
			t.Errorf("end %v: PLAYBACK_ENDED sent %d times, want 1", end, ended)
		}
	}
}

func TestPrimaryPreview_QueueOverPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	var q *player.Queue
	primary := NewPrimary(a, PrimaryOptions{
		Origin:          testOrigin,
		ExpectedOrigin:  testOrigin,
		OnPlaybackEnded: func(s player.Session) { q.Complete(s) },
	})
	preview := NewPreview(b, player.NewVirtualMedia(nil), newFakeSource(), PreviewOptions{
		Origin:             testOrigin,
		ExpectedOrigin:     testOrigin,
		PollInterval:       10 * time.Millisecond,
		TimeUpdateInterval: 20 * time.Millisecond,
		FrameRate:          30,
	})

	scenes := newFakeSource().scenes["v1"]
	q = player.NewQueue([]*catalog.Scene{scenes[1], scenes[0]}, 30, primary)

	primary.LoadVideo("v1")
	q.Advance()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go primary.Run(ctx)
	go preview.Run(ctx)

	select {
	case <-q.Done():
	case <-ctx.Done():
		t.Fatalf("queue not finished: cursor=%d remaining=%d", q.Cursor(), q.Remaining())
	}
}

func countReady(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(PreviewReady); ok {
			n++
		}
	}
	return n
}

func TestPreview_RepeatsReadyUntilCommand(t *testing.T) {
	local, remote := Pipe()
	defer remote.Close()

	p := NewPreview(local, player.NewVirtualMedia(nil), newFakeSource(), PreviewOptions{
		Origin:             testOrigin,
		ExpectedOrigin:     testOrigin,
		Scheduler:          &stepScheduler{},
		AnnounceInterval:   10 * time.Millisecond,
		TimeUpdateInterval: time.Hour,
		FrameRate:          30,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	if n := countReady(drain(t, remote)); n < 2 {
		t.Fatalf("PREVIEW_READY sent %d times before any command, want repeats", n)
	}

	if err := remote.Send(ctx, mustEncode(t, testOrigin, LoadVideo{VideoID: "v1"})); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for p.VideoID() != "v1" {
		if time.Now().After(deadline) {
			t.Fatal("LOAD_VIDEO not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	drain(t, remote)
	time.Sleep(40 * time.Millisecond)
	if n := countReady(drain(t, remote)); n != 0 {
		t.Errorf("PREVIEW_READY sent %d times after first command, want 0", n)
	}
}
