package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inferpool/internal/broker"
	"inferpool/internal/config"
	"inferpool/internal/dispatcher"
	"inferpool/internal/events"
	"inferpool/internal/gateway"
	"inferpool/internal/httpapi"
	"inferpool/internal/pool"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the slot API and the OpenAI-compatible gateway",
		Example: "  inferpool serve --servers http://gpu0:8000,http://gpu1:8000\n" +
			"  inferpool serve --config inferpool.yaml --log-format console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, os.Getenv)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	addServerFlags(cmd)
	cmd.Flags().String("addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().Int("max-concurrency", 0, "Slots per server (values below 1 become 1)")
	cmd.Flags().Int("refresh-interval", 0, "Seconds between manifest refreshes (0 refreshes once at startup)")
	cmd.Flags().Int("acquire-timeout", 0, "Default /acquire wait in seconds (0 waits for the client)")
	cmd.Flags().Int64("max-body-bytes", 0, "Maximum JSON body size for the slot API")
	cmd.Flags().String("http-log-level", "", "Per-request log level when a request sets none: off|error|info|debug")
	cmd.Flags().Bool("cors-enabled", false, "Enable CORS")
	cmd.Flags().String("cors-origins", "", "Comma separated allowed origins")
	return cmd
}

// components is the wired object graph of a running server.
type components struct {
	pool    *pool.Pool
	broker  *broker.Broker
	handler http.Handler
}

// buildComponents wires the object graph. Requests still queued when ctx ends
// are answered with 503.
func buildComponents(ctx context.Context, cfg config.Config, opts ...pool.Option) components {
	logger := newLogger(cfg, stderr)
	pub := events.Log{Logger: logger.With().Str("component", "events").Logger()}

	httpapi.SetBaseContext(ctx)
	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetDefaultRequestLogLevel(cfg.HTTPLogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetAcquireTimeout(cfg.AcquireTimeout())
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	popts := append([]pool.Option{
		pool.WithLogger(logger.With().Str("component", "pool").Logger()),
		pool.WithPublisher(pub),
		pool.WithManifestTimeout(cfg.ManifestTimeout()),
		pool.WithMaxConcurrency(cfg.MaxConcurrency),
	}, opts...)
	p := pool.New(cfg.Servers, popts...)
	d := dispatcher.New(p,
		dispatcher.WithLogger(logger.With().Str("component", "dispatcher").Logger()),
		dispatcher.WithPublisher(pub),
	)
	b := broker.New(p, d, broker.Options{
		RefreshInterval: cfg.RefreshInterval(),
		Logger:          logger.With().Str("component", "broker").Logger(),
	})
	gw := gateway.New(b,
		gateway.WithLogger(logger.With().Str("component", "gateway").Logger()),
		gateway.WithBaseContext(ctx),
	)

	return components{pool: p, broker: b, handler: httpapi.NewMux(b, gw)}
}

func serve(parent context.Context, cfg config.Config) error {
	logger := newLogger(cfg, stderr)
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := buildComponents(ctx, cfg)
	go c.broker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Strs("servers", c.pool.URLs()).Int("max_concurrency", c.pool.MaxConcurrency()).Msg("inferpool listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}
