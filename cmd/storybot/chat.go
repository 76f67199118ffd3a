package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/pkg/logger"
)

var (
	chatTheme string
	chatDelay time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with StoryBot in the terminal",
	Long: `Starts an interactive StoryBot session. Each line you type is sent as
one message; StoryBot answers after a short thinking pause.

Commands:
  /theme  toggle between dark and light
  /quit   leave the chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	theme, err := assistant.ParseTheme(chatTheme)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return chat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), theme, chatDelay)
}

// chat runs the REPL until in is exhausted, /quit is typed or ctx ends.
// Each reply is awaited before the next line is read.
func chat(ctx context.Context, in io.Reader, out io.Writer, theme model.Theme, delay time.Duration) error {
	state := assistant.NewThemeState(theme)
	ctrl := assistant.NewController(assistant.Options{
		SessionID: "terminal",
		Delay:     delay,
		Theme:     state,
		Logger:    cliLogger(),
		Observer: func(ev assistant.Event) {
			switch {
			case ev.Type == model.EventTypeMessage && ev.Message.Sender == model.SenderAssistant:
				printMessage(out, *ev.Message)
			case ev.Type == model.EventTypeTyping && ev.Busy:
				fmt.Fprintln(out, "StoryBot is typing...")
			}
		},
	})
	defer ctrl.Close()

	for _, msg := range ctrl.Messages() {
		printMessage(out, msg)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/theme":
			fmt.Fprintf(out, "theme: %s\n", state.Toggle())
			continue
		}

		pending, err := ctrl.Submit(line)
		if errors.Is(err, assistant.ErrBlankInput) {
			continue
		}
		if err != nil {
			return err
		}

		if _, err := pending.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}

	return scanner.Err()
}

func printMessage(out io.Writer, msg model.Message) {
	name := "you"
	if msg.Sender == model.SenderAssistant {
		name = "StoryBot"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", msg.Clock(), name, msg.Text)
}

func cliLogger() *logger.Logger {
	if log != nil {
		return log
	}
	return logger.NewNop()
}
