package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkwell/storybot/internal/assistant"
)

var classifyTheme string

var classifyCmd = &cobra.Command{
	Use:   "classify [utterance]",
	Short: "Show the intent and answer for one utterance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		theme, err := assistant.ParseTheme(classifyTheme)
		if err != nil {
			return err
		}

		result := assistant.Classify(strings.Join(args, " "), theme)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", result.Intent, result.Response)
		return nil
	},
}
