package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/timewarden/internal/backend"
	"github.com/loykin/timewarden/internal/config"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/server"
	"github.com/loykin/timewarden/internal/store/factory"
	twtls "github.com/loykin/timewarden/internal/tls"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// Serve runs the backend until ctx is cancelled.
func (c *command) Serve(ctx context.Context, f ServeFlags) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	cfg := s.cfg.Server

	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.DSN != "" {
		cfg.DSN = f.DSN
	}
	if f.ManualProbe {
		cfg.ManualProbe = true
	}
	if cfg.DSN == "" {
		if cfg.DSN, err = config.DefaultDSN(); err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	}

	st, err := factory.NewFromDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}

	var probe backend.Probe = backend.NullProbe{}
	if cfg.ManualProbe {
		probe = &backend.ManualProbe{}
	}
	svc := backend.New(st, probe, backend.WithLogger(s.logger))

	opts := []server.RouterOption{server.WithLogger(s.logger)}
	if s.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, server.WithMetrics())
	}
	router := server.NewRouter(svc, cfg.BasePath, opts...)

	tlsCfg, err := serverTLS(cfg)
	if err != nil {
		return err
	}
	var srv *http.Server
	if tlsCfg != nil {
		srv, err = server.NewTLSServer(cfg.Listen, tlsCfg, router)
	} else {
		srv, err = server.NewServer(cfg.Listen, router)
	}
	if err != nil {
		return err
	}
	s.logger.Info("backend listening", "addr", cfg.Listen, "base_path", cfg.BasePath, "tls", tlsCfg != nil)

	<-ctx.Done()
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// serverTLS returns nil when the server should run plain HTTP.
func serverTLS(cfg config.ServerConfig) (*tls.Config, error) {
	certPath, keyPath := cfg.TLSCert, cfg.TLSKey
	if certPath == "" && cfg.TLSDir != "" {
		if cfg.TLSAutoGenerate {
			var err error
			if certPath, keyPath, err = twtls.EnsureSelfSigned(cfg.TLSDir); err != nil {
				return nil, err
			}
		} else {
			certPath = filepath.Join(cfg.TLSDir, twtls.CertFile)
			keyPath = filepath.Join(cfg.TLSDir, twtls.KeyFile)
		}
	}
	if certPath == "" {
		return nil, nil
	}
	return twtls.ServerConfig(certPath, keyPath, cfg.TLSMinVersion)
}
