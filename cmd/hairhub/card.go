package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ihblv/hairhub-server/internal/report"
)

func cardCmd(a *app) *cobra.Command {
	var markdownOnly bool
	cmd := &cobra.Command{
		Use:   "card <card.json> <out>",
		Short: "Render a formula card as PDF (or markdown with --markdown)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var card report.Card
			if err := json.Unmarshal(raw, &card); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if card.CreatedAt.IsZero() {
				card.CreatedAt = time.Now()
			}
			var out []byte
			if markdownOnly {
				out = []byte(report.Markdown(card))
			} else {
				renderer := report.NewChromiumPDFRenderer(a.cfg.Report.ChromePath, a.cfg.Report.Timeout)
				out, err = renderer.Render(cmd.Context(), card)
				if err != nil {
					return err
				}
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[1], len(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdownOnly, "markdown", false, "write markdown instead of PDF")
	return cmd
}
