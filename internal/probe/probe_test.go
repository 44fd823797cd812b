package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const sampleJSON = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac"},
    {"codec_type": "video", "codec_name": "h264", "width": 3840, "height": 2160,
     "avg_frame_rate": "30000/1001", "r_frame_rate": "30000/1001"}
  ],
  "format": {"duration": "61.561500"}
}`

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30000/1001", 30000.0 / 1001.0, false},
		{"25/1", 25, false},
		{"24", 24, false},
		{"0/0", 0, true},
		{"", 0, true},
		{"abc/1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFFprobeOutput_Result(t *testing.T) {
	var out ffprobeOutput
	if err := jsonUnmarshal(sampleJSON, &out); err != nil {
		t.Fatal(err)
	}
	res, err := out.result()
	if err != nil {
		t.Fatalf("result() error = %v", err)
	}
	if res.DurationSeconds != 61.5615 {
		t.Errorf("DurationSeconds = %v, want 61.5615", res.DurationSeconds)
	}
	if res.VideoCodec != "h264" || res.AudioCodec != "aac" {
		t.Errorf("codecs = %s/%s", res.VideoCodec, res.AudioCodec)
	}
	if res.Width != 3840 || res.Height != 2160 {
		t.Errorf("size = %dx%d", res.Width, res.Height)
	}
	if res.FrameRate < 29.97 || res.FrameRate > 29.98 {
		t.Errorf("FrameRate = %v, want ~29.97", res.FrameRate)
	}
}

func TestFFprobeOutput_StreamDurationFallback(t *testing.T) {
	var out ffprobeOutput
	if err := jsonUnmarshal(`{"streams":[{"codec_type":"video","duration":"4.2","r_frame_rate":"25/1"}],"format":{}}`, &out); err != nil {
		t.Fatal(err)
	}
	res, err := out.result()
	if err != nil {
		t.Fatalf("result() error = %v", err)
	}
	if res.DurationSeconds != 4.2 || res.FrameRate != 25 {
		t.Errorf("res = %+v", res)
	}

	if _, err := (ffprobeOutput{}).result(); err == nil {
		t.Error("result() of empty output error = nil, want error")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestCappedWriter_KeepsHead(t *testing.T) {
	var buf bytes.Buffer
	cw := &cappedWriter{w: &buf, limit: 4}

	n, err := cw.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	cw.Write([]byte("gh"))
	if buf.String() != "abcd" {
		t.Errorf("got %q, want abcd", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789", 4); got != "...6789" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestResolveBinary_PreferredNotFound(t *testing.T) {
	if _, err := resolveBinary("/nonexistent/ffprobe999"); err == nil {
		t.Fatal("expected error for nonexistent ffprobe")
	}
}

func TestSafePath_DebugMode(t *testing.T) {
	p := &SubprocessProber{cfg: Config{DebugPaths: true}}
	path := "/Users/test/footage/clip.mp4"
	if got := p.safePath(path); got != path {
		t.Errorf("debug mode: safePath(%q) = %q, want full path", path, got)
	}
}

// writeFakeFFprobe installs a shell script standing in for ffprobe.
func writeFakeFFprobe(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubprocessProber_Probe(t *testing.T) {
	bin := writeFakeFFprobe(t, "cat <<'JSON'\n"+sampleJSON+"\nJSON\n")
	p, err := NewProber(Config{FFprobePath: bin, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewProber() error = %v", err)
	}

	d, err := p.ProbeDuration(context.Background(), mediaFile(t))
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if d != 61.5615 {
		t.Errorf("ProbeDuration() = %v, want 61.5615", d)
	}
}

func TestSubprocessProber_Failure(t *testing.T) {
	bin := writeFakeFFprobe(t, "echo 'moov atom not found' >&2\nexit 1\n")
	p, err := NewProber(Config{FFprobePath: bin, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewProber() error = %v", err)
	}

	_, err = p.Probe(context.Background(), mediaFile(t))
	if err == nil {
		t.Fatal("Probe() error = nil, want error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("moov atom not found")) {
		t.Errorf("error %q does not carry stderr tail", err)
	}

	if _, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Probe(missing) error = %v, want not exist", err)
	}
}

type fakeProber struct {
	calls int
	res   *Result
	err   error
}

func (f *fakeProber) Probe(context.Context, string) (*Result, error) {
	f.calls++
	return f.res, f.err
}

func TestCachedProber_TTLAndChanges(t *testing.T) {
	fake := &fakeProber{res: &Result{DurationSeconds: 12}}
	c := NewCachedProber(fake, nil)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()
	path := mediaFile(t)

	for i := 0; i < 2; i++ {
		if d, err := c.ProbeDuration(ctx, path); err != nil || d != 12 {
			t.Fatalf("ProbeDuration() = %v, %v", d, err)
		}
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1 (cached)", fake.calls)
	}

	now = now.Add(defaultCacheTTL + time.Second)
	c.Probe(ctx, path)
	if fake.calls != 2 {
		t.Errorf("calls = %d after TTL, want 2", fake.calls)
	}

	if err := os.WriteFile(path, []byte("a different, longer payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.Probe(ctx, path)
	if fake.calls != 3 {
		t.Errorf("calls = %d after file change, want 3", fake.calls)
	}

	c.Invalidate()
	c.Probe(ctx, path)
	if fake.calls != 4 {
		t.Errorf("calls = %d after Invalidate, want 4", fake.calls)
	}
}

func TestCachedProber_ErrorsNotCached(t *testing.T) {
	fake := &fakeProber{err: errors.New("boom")}
	c := NewCachedProber(fake, nil)
	path := mediaFile(t)

	c.Probe(context.Background(), path)
	c.Probe(context.Background(), path)
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2 (errors are not cached)", fake.calls)
	}
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
