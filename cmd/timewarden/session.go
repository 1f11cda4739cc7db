package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/timewarden/internal/config"
	"github.com/loykin/timewarden/internal/logger"
	"github.com/loykin/timewarden/pkg/client"
)

// session is the per-invocation runtime: effective config, logger and the
// backend client.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
	client *client.Client
}

// open loads the config file, applies the persistent flag overrides and
// builds the logger and client.
func (c *command) open() (*session, error) {
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.global.APIUrl != "" {
		cfg.Client.URL = c.global.APIUrl
	}
	if c.global.APITimeout > 0 {
		cfg.Client.Timeout = c.global.APITimeout
	}
	if c.global.LogLevel != "" {
		cfg.Log.Level = c.global.LogLevel
	}

	log, closer, err := logger.New(cfg.Log.Logger())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	cc := client.Config{
		BaseURL:  cfg.Client.URL,
		Timeout:  cfg.Client.Timeout,
		Logger:   log,
		Insecure: cfg.Client.Insecure,
	}
	if cfg.Client.CACert != "" || cfg.Client.ServerName != "" {
		cc.TLS = &client.TLSClientConfig{
			Enabled:    true,
			CACert:     cfg.Client.CACert,
			ServerName: cfg.Client.ServerName,
		}
	}
	return &session{cfg: cfg, logger: log, closer: closer, client: client.New(cc)}, nil
}

func (s *session) Close() error { return s.closer.Close() }

// requireBackend fails fast with a hint when the backend does not answer.
func (s *session) requireBackend(ctx context.Context) error {
	if !s.client.IsReachable(ctx) {
		return fmt.Errorf("backend not reachable at %s - start it first with 'timewarden serve'", s.client.BaseURL())
	}
	return nil
}
