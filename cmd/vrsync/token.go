package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/a-essam23/go-vrsync/internal/relay/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenName string
	tokenTTL  time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name carried in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, defaults to relay.auth.tokenTTL")
}

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "sign a session token for the relay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if cfg.Relay.Auth.JWTSecret == "" {
			return errors.New("relay.auth.jwtSecret is not set")
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.Relay.Auth.TokenTTL
		}
		token, err := middleware.SignToken(cfg.Relay.Auth.JWTSecret, args[0], tokenName, ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
