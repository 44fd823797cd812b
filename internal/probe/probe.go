package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 1 << 20
)

// Prober extracts metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Result, error)
}

type Config struct {
	FFprobePath string        // path to ffprobe; empty = look up on PATH
	Timeout     time.Duration // per-file timeout
	Logger      *slog.Logger
	DebugPaths  bool // if true, log full file paths; otherwise sanitise
}

func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		Timeout: 15 * time.Second,
		Logger:  logger,
	}
}

// SubprocessProber runs ffprobe for every call.
type SubprocessProber struct {
	cfg     Config
	ffprobe string
}

// NewProber resolves the ffprobe binary. It fails when none is installed.
func NewProber(cfg Config) (*SubprocessProber, error) {
	bin, err := resolveBinary(cfg.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffprobe: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig(nil).Timeout
	}

	cfg.Logger.Info("media prober initialised", "ffprobe", bin)
	return &SubprocessProber{cfg: cfg, ffprobe: bin}, nil
}

func (p *SubprocessProber) Probe(ctx context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("probe %s: %w", p.safePath(path), err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	run := p.exec(ctx,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if !run.IsSuccess() {
		return nil, fmt.Errorf("ffprobe exited %d: %s", run.ExitCode, truncate(run.StderrTail, 512))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(run.Stdout, &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}
	res, err := out.result()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", p.safePath(path), err)
	}
	return res, nil
}

// ProbeDuration is the catalog's view of a prober.
func (p *SubprocessProber) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return res.DurationSeconds, nil
}

func (p *SubprocessProber) exec(ctx context.Context, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, p.ffprobe, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&cappedWriter{w: &stdoutBuf, limit: maxStdoutBytes})
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	p.cfg.Logger.Debug("executing ffprobe", "file", p.safePath(args[len(args)-1]))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrBuf.WriteString(err.Error())
		}
	}

	if exitCode != 0 {
		p.cfg.Logger.Warn("ffprobe failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.Bytes(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}
}

func (p *SubprocessProber) safePath(path string) string {
	if p.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func resolveBinary(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffprobe %q not found", preferred)
	}
	if p, err := exec.LookPath("ffprobe"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffprobe binary found on PATH")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}

// cappedWriter keeps the first `limit` bytes and discards the rest.
type cappedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (cw *cappedWriter) Write(p []byte) (int, error) {
	if room := cw.limit - cw.w.Len(); room > 0 {
		if len(p) > room {
			cw.w.Write(p[:room])
		} else {
			cw.w.Write(p)
		}
	}
	return len(p), nil
}
