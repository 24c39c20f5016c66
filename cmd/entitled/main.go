// Command entitled serves the entitlement engine over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	entitle "github.com/xraph/entitle"
	audithook "github.com/xraph/entitle/audit_hook"
	"github.com/xraph/entitle/config"
	"github.com/xraph/entitle/observability"
	"github.com/xraph/entitle/store/backend"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli is the state shared by all subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "entitled",
		Short:         "Usage metering and subscription entitlement server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.cfg = cfg
			c.logger = slog.New(cfg.Log.Handler(cmd.ErrOrStderr()))
			slog.SetDefault(c.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "entitle.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newPlansCmd(c),
	)
	return root
}

// openEngine opens the configured store and builds an engine with the
// metrics and audit plugins attached.
func (c *cli) openEngine(ctx context.Context) (*entitle.Engine, *observability.PrometheusFactory, error) {
	s, err := backend.Open(ctx, c.cfg.Database.Driver, c.cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}

	opts, err := c.cfg.Engine.EngineOptions()
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	metrics := observability.NewPrometheusFactory()
	audit := audithook.New(audithook.RecorderFunc(c.recordAudit), audithook.WithLogger(c.logger))

	opts = append(opts,
		entitle.WithLogger(c.logger),
		entitle.WithPlugin(observability.NewMetricsExtension(metrics)),
		entitle.WithPlugin(audit),
	)
	return entitle.New(s, opts...), metrics, nil
}

// recordAudit writes audit events to the structured log.
func (c *cli) recordAudit(_ context.Context, ev *audithook.AuditEvent) error {
	attrs := []any{
		"action", ev.Action,
		"resource", ev.Resource,
		"resource_id", ev.ResourceID,
		"outcome", ev.Outcome,
		"severity", ev.Severity,
	}
	if ev.Reason != "" {
		attrs = append(attrs, "reason", ev.Reason)
	}
	if len(ev.Metadata) > 0 {
		attrs = append(attrs, "metadata", ev.Metadata)
	}
	c.logger.Info("audit", attrs...)
	return nil
}
