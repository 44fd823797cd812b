// Package probe reads media metadata by running ffprobe as a subprocess.
package probe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result is the metadata the player cares about.
type Result struct {
	DurationSeconds float64 `json:"duration_seconds"`
	FrameRate       float64 `json:"frame_rate,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	VideoCodec      string  `json:"video_codec,omitempty"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
}

// RunResult is the outcome of one ffprobe invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     []byte        `json:"-"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ffprobeOutput is the subset of `ffprobe -print_format json` we read.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func (o ffprobeOutput) result() (*Result, error) {
	var res Result
	if d, err := strconv.ParseFloat(o.Format.Duration, 64); err == nil {
		res.DurationSeconds = d
	}

	for _, s := range o.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec != "" {
				continue
			}
			res.VideoCodec = s.CodecName
			res.Width, res.Height = s.Width, s.Height
			if r, err := ParseRate(s.AvgFrameRate); err == nil {
				res.FrameRate = r
			} else if r, err := ParseRate(s.RFrameRate); err == nil {
				res.FrameRate = r
			}
			if res.DurationSeconds == 0 {
				if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					res.DurationSeconds = d
				}
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}

	if res.DurationSeconds <= 0 {
		return nil, fmt.Errorf("ffprobe reported no duration")
	}
	return &res, nil
}

// ParseRate parses ffprobe rationals such as "30000/1001" or plain numbers.
func ParseRate(s string) (float64, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	if !ok {
		if n <= 0 {
			return 0, fmt.Errorf("invalid rate %q", s)
		}
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 || n <= 0 {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	return n / d, nil
}
