package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "shortsbot",
		Short:        "Turn long videos into vertical, captioned shorts",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "", "TOML config file (default shortsbot.toml if present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cut := &cobra.Command{
		Use:   "cut <input|url>",
		Short: "Render shorts for one local video or link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd, args[0])
		},
	}
	cut.Flags().String("out", "out", "Output directory")

	root.AddCommand(serve, cut)
	return root
}
