// Package cli implements faqctl, which runs the retrieval cascade in-process
// against the same configuration as the API.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/faq-assistant/internal/bootstrap"
	"github.com/kirillkom/faq-assistant/internal/config"
	"github.com/kirillkom/faq-assistant/internal/observability/logging"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "faqctl",
		Short:         "Query the FAQ retrieval cascade from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newAskCommand(), newHealthCommand())
	return root
}

// startApp bootstraps the cascade with logs routed to the command's stderr.
func startApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	cfg.MetricsEnabled = false
	slog.SetDefault(logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "faqctl", cfg.LogLevel))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
