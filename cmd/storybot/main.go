// Package main is the storybot command line: a terminal chat against the
// assistant core plus a few operator helpers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/config"
	"github.com/inkwell/storybot/pkg/logger"
)

var (
	// Global flags
	logLevel string

	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "storybot",
	Short: "StoryBot, the InkWell blog assistant",
	Long: `StoryBot answers questions about using the InkWell blog platform.

Run "storybot chat" for an interactive session in the terminal, or
"storybot classify" to see how a single utterance is answered.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		l, err := logger.New(logLevel)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		log = l
		logger.SetGlobal(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	chatCmd.Flags().StringVar(&chatTheme, "theme", "light", "Initial theme (dark or light)")
	chatCmd.Flags().DurationVar(&chatDelay, "delay", 0, "Thinking delay before each reply (default 1.5s)")
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())

	classifyCmd.Flags().StringVar(&classifyTheme, "theme", "light", "Theme used for the theme answer (dark or light)")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Subject of the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_EXPIRATION)")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "Scope to grant (repeatable)")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Debug("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
