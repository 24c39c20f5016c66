package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/entitle/api"
	"github.com/xraph/entitle/generate"
	"github.com/xraph/entitle/identity"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, metrics, err := c.openEngine(ctx)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		_ = engine.Stop()
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			c.logger.Error("engine stop failed", "error", err)
		}
	}()

	cfg := c.cfg
	if cfg.Identity.ClientID == "" {
		c.logger.Warn("identity.client_id not set, token audience is not checked")
	}
	verifier := identity.NewGoogle(cfg.Identity.ClientID,
		identity.WithTimeout(cfg.Identity.Timeout),
		identity.WithAllowedExtensions(cfg.Identity.AllowedExtensions...),
		identity.WithLogger(c.logger),
	)

	if cfg.Generation.APIKey == "" {
		c.logger.Warn("OPENAI_API_KEY not set, simplify requests will fail upstream")
	}
	provider := generate.NewOpenAI(cfg.Generation.APIKey,
		generate.WithBaseURL(cfg.Generation.BaseURL),
		generate.WithModel(cfg.Generation.Model),
		generate.WithMaxTokens(cfg.Generation.MaxTokens),
		generate.WithLogger(c.logger),
	)

	if lvl, _ := cfg.Log.SlogLevel(); lvl > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.New(engine, verifier, provider,
		api.WithLogger(c.logger),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		api.WithMetricsHandler(metrics.Handler()),
	)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("listening", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		c.logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
