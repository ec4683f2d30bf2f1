package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/statsquest/internal/platform/config"
	"github.com/p-n-ai/statsquest/internal/progress"
	"github.com/p-n-ai/statsquest/internal/report"
)

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Print the stored progress summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), cfg, func(store *progress.Store) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(store.Summary())
			})
		},
	}
}

func newReportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the stored progress as an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			units, err := loadCurriculum(cfg.CurriculumPath)
			if err != nil {
				return fmt.Errorf("load curriculum: %w", err)
			}

			return withStore(cmd.Context(), cfg, func(store *progress.Store) error {
				f, err := report.Build(units.Units(), store.Progress(), store.Catalog())
				if err != nil {
					return err
				}
				defer f.Close()
				if err := f.SaveAs(out); err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "statsquest-progress.xlsx", "output file")
	return cmd
}

// withStore opens the configured progress store, runs fn and closes the store.
func withStore(ctx context.Context, cfg *config.Config, fn func(*progress.Store) error) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	store := progress.Open(ctx, progress.Config{Persister: be.persister})
	defer func() {
		if err := store.Close(ctx); err != nil {
			slog.Warn("close progress store", "error", err)
		}
	}()
	return fn(store)
}
