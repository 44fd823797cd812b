package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-player/internal/apiclient"
	"github.com/heimdex/heimdex-player/internal/config"
	"github.com/heimdex/heimdex-player/internal/logging"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		if err := config.LoadDotEnv(); err != nil {
			c.configErr = err
			return
		}
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				os.Setenv(config.EnvConfigFile, path)
			}
		}
		cfg, err := config.New()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output on stdout stays clean.
func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewLoggerFor(config.DefaultLogLevel, logging.FormatAuto, os.Stderr)
	}
	return logging.NewLoggerFor(cfg.LogLevel(), cfg.LogFormat(), os.Stderr)
}

func (c *commandContext) apiURL() string {
	if c.apiFlag != nil {
		if u := strings.TrimSpace(*c.apiFlag); u != "" {
			return strings.TrimRight(u, "/")
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort)
	}
	return cfg.APIURL()
}

func (c *commandContext) client() *apiclient.Client {
	return apiclient.New(c.apiURL(), c.logger())
}

// origin is what client surfaces present in their websocket handshake and
// stamp on envelopes. The server's own origin is trusted by default.
func (c *commandContext) origin() (string, error) {
	return originOf(c.apiURL())
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

func wrapConnectError(err error, base string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to %s: connection refused; start the server with `heimdex-player serve`", base)
	default:
		return fmt.Errorf("connect to %s: %w", base, err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
