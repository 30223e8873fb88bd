package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type askOutput struct {
	Source          domain.Source `json:"source"`
	MatchScore      float64       `json:"match_score"`
	MatchedQuestion *string       `json:"matched_question"`
	Answer          string        `json:"answer"`
	Category        string        `json:"category"`
}

func newAskCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question through the retrieval cascade",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("question is required")
			}

			app, err := startApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.FAQ.Ask(cmd.Context(), query)
			if err != nil {
				return err
			}

			out := askOutput{
				Source:          result.Source,
				MatchScore:      math.Round(result.Score*1000) / 1000,
				MatchedQuestion: result.MatchedQuestion,
				Answer:          result.Answer,
				Category:        result.Category,
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Answer)
			matched := "-"
			if out.MatchedQuestion != nil {
				matched = *out.MatchedQuestion
			}
			fmt.Fprintf(w, "\nsource=%s score=%.3f category=%s matched=%q\n", out.Source, out.MatchScore, out.Category, matched)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
