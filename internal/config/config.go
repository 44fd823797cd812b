// Package config provides configuration management for the Heimdex player.
// Configuration is loaded from an optional config.toml, then environment
// variables; a .env file in the working directory is honored when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort           = 8787
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultDataDir        = ".heimdex-player"
	DefaultFrameRate      = 30.0
	DefaultPollIntervalMs = 100

	// Environment variable names
	EnvPort          = "HEIMDEX_PORT"
	EnvLogLevel      = "HEIMDEX_LOG_LEVEL"
	EnvLogFormat     = "HEIMDEX_LOG_FORMAT"
	EnvDataDir       = "HEIMDEX_DATA_DIR"
	EnvVideoBaseDir  = "HEIMDEX_VIDEO_BASE_DIR"
	EnvFrameRate     = "HEIMDEX_FRAME_RATE"
	EnvPollInterval  = "HEIMDEX_POLL_INTERVAL_MS"
	EnvAllowedOrigin = "HEIMDEX_ALLOWED_ORIGIN"
	EnvAPIURL        = "HEIMDEX_API_URL"
	EnvHeadless      = "HEIMDEX_HEADLESS"
	EnvConfigFile    = "HEIMDEX_CONFIG"
	EnvFFprobePath   = "HEIMDEX_FFPROBE"

	// Database filename
	DBFilename = "heimdex-player.db"

	// ConfigFilename is looked up in the data dir unless HEIMDEX_CONFIG is set.
	ConfigFilename = "config.toml"

	// LockFilename guards against two servers sharing one data dir.
	LockFilename = "serve.lock"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	LockPath() string
	VideoBaseDir() string
	FrameRate() float64
	PollInterval() time.Duration
	AllowedOrigins() []string
	APIURL() string
	Headless() bool
	FFprobePath() string
	ConfigFile() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	logFormat      string
	dataDir        string
	videoBaseDir   string
	frameRate      float64
	pollInterval   time.Duration
	allowedOrigins []string
	apiURL         string
	headless       bool
	ffprobePath    string
	configFile     string
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New creates a new EnvConfig from defaults, the optional TOML config file
// and environment variable overrides, in that order of precedence.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		logFormat:    DefaultLogFormat,
		dataDir:      defaultDataDir(),
		frameRate:    DefaultFrameRate,
		pollInterval: DefaultPollIntervalMs * time.Millisecond,
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	path, explicit := os.Getenv(EnvConfigFile), true
	if path == "" {
		path, explicit = filepath.Join(cfg.dataDir, ConfigFilename), false
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := checkPort(port); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if lf := os.Getenv(EnvLogFormat); lf != "" {
		format, err := checkLogFormat(lf)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvLogFormat, err)
		}
		cfg.logFormat = format
	}

	if vb := os.Getenv(EnvVideoBaseDir); vb != "" {
		cfg.videoBaseDir = vb
	}

	if fr := os.Getenv(EnvFrameRate); fr != "" {
		rate, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFrameRate, err)
		}
		if err := checkFrameRate(rate); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFrameRate, err)
		}
		cfg.frameRate = rate
	}

	if pi := os.Getenv(EnvPollInterval); pi != "" {
		ms, err := strconv.Atoi(pi)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		if err := checkPollInterval(ms); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPollInterval, err)
		}
		cfg.pollInterval = time.Duration(ms) * time.Millisecond
	}

	if ao := os.Getenv(EnvAllowedOrigin); ao != "" {
		cfg.allowedOrigins = normalizeOrigins(strings.Split(ao, ","))
	}

	if api := os.Getenv(EnvAPIURL); api != "" {
		cfg.apiURL = strings.TrimRight(api, "/")
	}

	if fp := os.Getenv(EnvFFprobePath); fp != "" {
		cfg.ffprobePath = fp
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// FileConfig is the layout of config.toml. Unset keys keep their defaults.
type FileConfig struct {
	Port           *int     `toml:"port"`
	LogLevel       string   `toml:"log_level"`
	LogFormat      string   `toml:"log_format"`
	VideoBaseDir   string   `toml:"video_base_dir"`
	FrameRate      *float64 `toml:"frame_rate"`
	PollIntervalMs *int     `toml:"poll_interval_ms"`
	AllowedOrigins []string `toml:"allowed_origins"`
	APIURL         string   `toml:"api_url"`
	Headless       *bool    `toml:"headless"`
	FFprobePath    string   `toml:"ffprobe_path"`
}

// applyFile merges the TOML file at path. A missing file is only an error
// when the path was given explicitly.
func (c *EnvConfig) applyFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.Port != nil {
		if err := checkPort(*fc.Port); err != nil {
			return fmt.Errorf("%s: port: %w", path, err)
		}
		c.port = *fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		format, err := checkLogFormat(fc.LogFormat)
		if err != nil {
			return fmt.Errorf("%s: log_format: %w", path, err)
		}
		c.logFormat = format
	}
	if fc.VideoBaseDir != "" {
		c.videoBaseDir = fc.VideoBaseDir
	}
	if fc.FrameRate != nil {
		if err := checkFrameRate(*fc.FrameRate); err != nil {
			return fmt.Errorf("%s: frame_rate: %w", path, err)
		}
		c.frameRate = *fc.FrameRate
	}
	if fc.PollIntervalMs != nil {
		if err := checkPollInterval(*fc.PollIntervalMs); err != nil {
			return fmt.Errorf("%s: poll_interval_ms: %w", path, err)
		}
		c.pollInterval = time.Duration(*fc.PollIntervalMs) * time.Millisecond
	}
	if len(fc.AllowedOrigins) > 0 {
		c.allowedOrigins = normalizeOrigins(fc.AllowedOrigins)
	}
	if fc.APIURL != "" {
		c.apiURL = strings.TrimRight(fc.APIURL, "/")
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	if fc.FFprobePath != "" {
		c.ffprobePath = fc.FFprobePath
	}
	c.configFile = path
	return nil
}

func checkPort(port int) error {
	if port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func checkLogFormat(format string) (string, error) {
	switch f := strings.ToLower(format); f {
	case "json", "text", "auto":
		return f, nil
	default:
		return "", errors.New("must be json, text or auto")
	}
}

func checkFrameRate(rate float64) error {
	if rate <= 0 || rate > 240 {
		return errors.New("frame rate must be in (0, 240]")
	}
	return nil
}

func checkPollInterval(ms int) error {
	if ms < 10 || ms > 1000 {
		return errors.New("must be between 10 and 1000")
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) LockPath() string {
	return filepath.Join(c.dataDir, LockFilename)
}

// VideoBaseDir is the default folder media paths are resolved against. The
// value stored through the settings API takes precedence.
func (c *EnvConfig) VideoBaseDir() string {
	return c.videoBaseDir
}

func (c *EnvConfig) FrameRate() float64 {
	return c.frameRate
}

// PollInterval is the boundary check interval of bounded playback.
func (c *EnvConfig) PollInterval() time.Duration {
	return c.pollInterval
}

// AllowedOrigins lists the origins trusted for CORS and surface messages.
// Defaults to the server's own loopback origins.
func (c *EnvConfig) AllowedOrigins() []string {
	if len(c.allowedOrigins) > 0 {
		return c.allowedOrigins
	}
	return []string{
		fmt.Sprintf("http://127.0.0.1:%d", c.port),
		fmt.Sprintf("http://localhost:%d", c.port),
	}
}

// APIURL is the data API base URL used by client commands.
func (c *EnvConfig) APIURL() string {
	if c.apiURL != "" {
		return c.apiURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.port)
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// FFprobePath is the ffprobe binary used to fill in missing durations.
// Empty means look it up on PATH.
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// ConfigFile is the path of the TOML file that was applied, if any.
func (c *EnvConfig) ConfigFile() string {
	return c.configFile
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
