package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report which cascade tiers are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			caps := app.FAQ.Capabilities()
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
				"status":         "ok",
				"entries":        app.Corpus.Len(),
				"use_embeddings": caps.SemanticEnabled,
				"use_gpt":        caps.GenerativeEnabled,
			})
		},
	}
}
