package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotFound is returned when the media file does not exist. Nothing has
// been written to the response in that case.
var ErrNotFound = errors.New("media file not found")

// Streamer serves local media files with single-range byte-range support.
type Streamer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

type Server struct {
	logger *slog.Logger
	chunk  int64
}

type Option func(*Server)

// WithChunkSize sets the cap for open-ended ranges; zero or less serves the
// rest of the file.
func WithChunkSize(n int64) Option {
	return func(s *Server) { s.chunk = n }
}

func NewServer(logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{logger: logger, chunk: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var videoTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
	".jpg": "image/jpeg",
	".png": "image/png",
}

// ContentType resolves a media type from the file extension.
func ContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return ErrNotFound
	}

	size := stat.Size()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", ContentType(filePath))

	header := r.Header.Get("Range")
	rng, partial, err := ParseRange(header, size, s.chunk)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil {
		s.logger.Debug("ignoring malformed range", "range", header, "path", filepath.Base(filePath))
	}

	if !partial {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("stream interrupted", "path", filepath.Base(filePath), "error", err)
		}
		return nil
	}

	if _, err := file.Seek(rng.First, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(rng.Len(), 10))
	w.Header().Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := io.CopyN(w, file, rng.Len()); err != nil {
		s.logger.Debug("range stream interrupted",
			"path", filepath.Base(filePath),
			"range", rng.ContentRange(size),
			"error", err,
		)
	}
	return nil
}
