// Package main is the entry point for the sklad bot and its admin CLI.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sklad-bot/sklad/internal/bot"
	"github.com/sklad-bot/sklad/internal/config"
	"github.com/sklad-bot/sklad/internal/media"
	"github.com/sklad-bot/sklad/internal/store"
	"github.com/sklad-bot/sklad/internal/tweets"
	"github.com/sklad-bot/sklad/internal/twitter"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sklad",
		Short:         "A personal Telegram bot that relays tweets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	root.AddCommand(runCmd(), userCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DBFile)
			if err != nil {
				return err
			}

			sessions := twitter.NewManager(st)
			normalizer := media.New()
			resolver := tweets.NewResolver(st, normalizer)
			paginator := tweets.NewPaginator(st)

			b, err := bot.New(cfg, st, sessions, resolver, paginator)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := b.Run(ctx); err != nil {
				return err
			}
			logrus.Info("Exiting...")
			return nil
		},
	}
}
