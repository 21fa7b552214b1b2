/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/loomboard/internal/auth"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a session token for the /api endpoints",
	Long: `Sign a session token for user-id with session.secret. Useful for scripts,
local testing and "loomboard migrate".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Session.Secret == "" {
			return errors.New("session.secret is not configured")
		}
		tok, err := auth.NewSessionVerifier(cfg.Session.Secret, cfg.Session.Issuer).Issue(args[0], tokenTTL)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
