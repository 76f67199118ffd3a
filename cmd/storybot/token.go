package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell/storybot/internal/config"
	"github.com/inkwell/storybot/internal/middleware"
)

var (
	tokenUser   string
	tokenTTL    time.Duration
	tokenScopes []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the API",
	Long: `Signs a JWT with JWT_SECRET so a session can be owned by a named user.
Anonymous widget visitors do not need one unless AUTH_REQUIRED is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.JWTExpiration
		}

		token, err := middleware.IssueToken(cfg.JWTSecret, tokenUser, ttl, tokenScopes...)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
