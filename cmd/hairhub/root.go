package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ihblv/hairhub-server/internal/brands"
	"github.com/ihblv/hairhub-server/internal/config"
	"github.com/ihblv/hairhub-server/internal/formula"
	"github.com/ihblv/hairhub-server/internal/logger"
)

type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hairhub",
		Short:         "Hair color formula generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("HAIRHUB_CONFIG"), "YAML config file")

	root.AddCommand(
		serveCmd(a),
		analyzeCmd(a),
		checkCmd(a),
		brandsCmd(a),
		catalogCmd(a),
		cardCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(&logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		JSON:   cfg.Log.JSON,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) registry() (*brands.Registry, error) {
	reg, err := brands.Open(a.cfg.Catalog.Path, a.cfg.Catalog.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open brand catalog: %w", err)
	}
	return reg, nil
}

func (a *app) caller(ctx context.Context) (formula.LLMCaller, error) {
	llm := a.cfg.LLM
	return formula.NewCaller(ctx, llm.Provider, llm.APIKey, llm.Model, llm.MaxTokens)
}
