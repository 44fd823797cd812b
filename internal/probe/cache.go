package probe

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CachedProber wraps a Prober and reuses results for unchanged files.
// An entry is stale once the TTL passes or the file's size or mtime changes.
type CachedProber struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result   *Result
	size     int64
	modTime  time.Time
	probedAt time.Time
}

func NewCachedProber(prober Prober, logger *slog.Logger) *CachedProber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedProber{
		prober:  prober,
		ttl:     defaultCacheTTL,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedProber) Probe(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.probedAt) < c.ttl && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.result, nil
	}

	res, err := c.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{result: res, size: info.Size(), modTime: info.ModTime(), probedAt: c.now()}
	c.mu.Unlock()

	c.logger.Debug("media probed", "duration_s", res.DurationSeconds, "frame_rate", res.FrameRate)
	return res, nil
}

func (c *CachedProber) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := c.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return res.DurationSeconds, nil
}

// Invalidate drops every cached result.
func (c *CachedProber) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
