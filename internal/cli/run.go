package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/shortsbot/internal/config"
	"github.com/forPelevin/shortsbot/internal/logging"
	"github.com/forPelevin/shortsbot/internal/pipeline"
)

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, logging.NewLogger(cfg.LogLevel), nil
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting bot",
		"token", logging.SanitizeToken(cfg.Bot.Token),
		"model", cfg.Gemini.Model,
		"transcriber", cfg.Transcription.Backend,
	)
	return pipeline.Serve(ctx, cfg, log)
}

func runCut(cmd *cobra.Command, input string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	outDir, _ := cmd.Flags().GetString("out")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Bot.RequestTimeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bot.RequestTimeout.Duration)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	runDir, err := pipeline.Cut(ctx, cfg, pipeline.CutConfig{
		Input:  input,
		OutDir: outDir,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(out, format+"\n", args...)
		},
	}, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "done: %s\n", runDir)
	return nil
}
