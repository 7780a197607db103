package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-essam23/go-vrsync/internal/relay"
	"github.com/spf13/cobra"
)

var relayAddress string

func init() {
	relayCmd.Flags().StringVar(&relayAddress, "address", "", "listen address, overrides relay.address")
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "run the development relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if relayAddress != "" {
			cfg.Relay.Address = relayAddress
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := relay.NewApp(logger, ctx, cfg)
		if err := app.Run(); err != nil {
			return err
		}
		logger.Info("Relay stopped", slog.String("addr", cfg.Relay.Address))
		return nil
	},
}
