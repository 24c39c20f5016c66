package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/entitle/store/backend"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := backend.Open(cmd.Context(), c.cfg.Database.Driver, c.cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			c.logger.Info("migrations applied", "driver", c.cfg.Database.Driver)
			return nil
		},
	}
}

func newPlansCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Print the configured plan catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := c.cfg.Engine.Registry()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMAX_CHARS\tMAX_REQUESTS\tAI_SETTINGS\tTERM\tPRICE")
			for _, p := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\t%s\n",
					p.ID, p.Name, p.MaxChars, p.MaxRequests, p.AISettingsEnabled, p.Term, p.Price.FormatMajor())
			}
			return w.Flush()
		},
	}
}
