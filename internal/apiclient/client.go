// Package apiclient talks to a running heimdex-player server over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/heimdex/heimdex-player/internal/catalog"
	"github.com/heimdex/heimdex-player/internal/export"
)

// UnresolvedHeader carries the IDs an export could not resolve.
const UnresolvedHeader = "X-Unresolved-Scenes"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("heimdex api: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type Health struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	UptimeS  int64          `json:"uptime_s"`
	Surfaces map[string]int `json:"surfaces,omitempty"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Videos(ctx context.Context) ([]*catalog.Video, error) {
	var resp struct {
		Videos []*catalog.Video `json:"videos"`
	}
	if err := c.getJSON(ctx, "/api/videos", &resp); err != nil {
		return nil, err
	}
	return resp.Videos, nil
}

// Video returns nil, nil when the server does not know the video.
func (c *Client) Video(ctx context.Context, id string) (*catalog.Video, error) {
	var v catalog.Video
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(id), &v); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (c *Client) Scenes(ctx context.Context, videoID string) ([]*catalog.Scene, error) {
	var resp struct {
		Scenes []*catalog.Scene `json:"scenes"`
	}
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(videoID)+"/scenes", &resp); err != nil {
		return nil, err
	}
	return resp.Scenes, nil
}

func (c *Client) Transcripts(ctx context.Context, videoID string) ([]*catalog.Transcript, error) {
	var resp struct {
		Transcriptions []*catalog.Transcript `json:"transcriptions"`
	}
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(videoID)+"/transcriptions", &resp); err != nil {
		return nil, err
	}
	return resp.Transcriptions, nil
}

func (c *Client) StreamURL(videoID string) string {
	return c.baseURL + "/api/videos/" + url.PathEscape(videoID) + "/stream"
}

func (c *Client) ThumbnailURL(sceneID string) string {
	return c.baseURL + "/api/scenes/" + url.PathEscape(sceneID) + "/thumbnail"
}

func (c *Client) UpdateScene(ctx context.Context, id string, update catalog.SceneUpdate) (*catalog.Scene, error) {
	var s catalog.Scene
	if err := c.doJSON(ctx, http.MethodPut, "/api/scenes/"+url.PathEscape(id), update, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteScenes(ctx context.Context, ids []string) (int64, error) {
	req := struct {
		SceneIDs []string `json:"scene_ids"`
	}{ids}
	var resp struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/scenes/delete", req, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

func (c *Client) ImportVideo(ctx context.Context, req catalog.ImportRequest) (*catalog.Video, error) {
	var v catalog.Video
	if err := c.doJSON(ctx, http.MethodPost, "/api/videos", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

type baseFolder struct {
	Path string `json:"path"`
}

func (c *Client) BaseFolder(ctx context.Context) (string, error) {
	var resp baseFolder
	if err := c.getJSON(ctx, "/api/settings/base-folder", &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

func (c *Client) SetBaseFolder(ctx context.Context, path string) (string, error) {
	var resp baseFolder
	if err := c.doJSON(ctx, http.MethodPut, "/api/settings/base-folder", baseFolder{Path: path}, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// File is a downloaded export.
// File is a downloaded export. Unresolved lists requested IDs the server skipped.
type File struct {
	Filename   string
	Data       []byte
	Unresolved []string
}

func (c *Client) ExportEDL(ctx context.Context, req export.EDLRequest) (*File, error) {
	return c.download(ctx, "/api/export/edl", req, "export.edl")
}

func (c *Client) ExportSRT(ctx context.Context, req export.SRTRequest) (*File, error) {
	return c.download(ctx, "/api/export/srt", req, "export.srt")
}

func (c *Client) download(ctx context.Context, path string, body any, fallback string) (*File, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	name := fallback
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	file := &File{Filename: name, Data: data}
	if h := resp.Header.Get(UnresolvedHeader); h != "" {
		for _, id := range strings.Split(h, ",") {
			if id = strings.TrimSpace(id); id != "" {
				file.Unresolved = append(file.Unresolved, id)
			}
		}
	}
	return file, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do sends the request and returns the response for 2xx statuses. Any other
// status is returned as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
}
