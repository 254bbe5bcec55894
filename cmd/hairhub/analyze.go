package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/ihblv/hairhub-server/internal/brands"
	"github.com/ihblv/hairhub-server/internal/formula"
)

func analyzeCmd(a *app) *cobra.Command {
	var category, brand string
	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Generate a formula for one photo and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mt := mimetype.Detect(data)
			if !strings.HasPrefix(mt.String(), "image/") {
				return fmt.Errorf("%s is %s, not an image", args[0], mt.String())
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			caller, err := a.caller(cmd.Context())
			if err != nil {
				return err
			}
			cat := brands.ParseCategory(category)
			rule := reg.Resolve(cat, brand)
			result, err := formula.NewPipeline(caller,
				formula.WithLogger(a.log.Named("formula")),
				formula.WithProvider(a.cfg.LLM.Provider),
			).Generate(cmd.Context(), formula.Request{
				Category: cat,
				Brand:    rule,
				Image:    formula.Image{MediaType: mt.String(), Data: data},
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&category, "category", string(brands.CategoryPermanent), "permanent, demi or semi")
	cmd.Flags().StringVar(&brand, "brand", "", "brand name (defaults to the category default)")
	return cmd
}

// checkCmd re-runs the deterministic post-processing on a saved result.
func checkCmd(a *app) *cobra.Command {
	var category, brand string
	cmd := &cobra.Command{
		Use:   "check <result.json>",
		Short: "Normalize and validate a saved result without calling a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			parsed, err := formula.ParseResult(string(raw))
			if err != nil {
				return err
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			cat := brands.ParseCategory(category)
			result, outcome := formula.Process(parsed, reg.Resolve(cat, brand), cat)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{"result": result, "validation": outcome}); err != nil {
				return err
			}
			if !outcome.Valid {
				return fmt.Errorf("invalid: %s", outcome.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", string(brands.CategoryPermanent), "permanent, demi or semi")
	cmd.Flags().StringVar(&brand, "brand", "", "brand name")
	return cmd
}
