package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/model"
)

func TestChatTranscript(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := strings.NewReader("hi\n\n   \n/theme\ntheme\n/quit\nhelp\n")
	var out bytes.Buffer

	err := chat(context.Background(), in, &out, model.ThemeLight, time.Millisecond)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "StoryBot: "+assistant.SeedGreeting)
	assert.Contains(t, got, "StoryBot: "+assistant.GreetingResponse)
	assert.Contains(t, got, "theme: dark")
	assert.Contains(t, got, "StoryBot: "+assistant.ThemeResponse(model.ThemeDark))
	assert.NotContains(t, got, assistant.HelpResponse)
	assert.Equal(t, 2, strings.Count(got, "StoryBot is typing..."))

	lines := strings.Split(strings.TrimSpace(got), "\n")
	assert.Regexp(t, `^\[\d\d:\d\d\] StoryBot: `, lines[0])
}

func TestChatStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := chat(ctx, strings.NewReader("hello\nhelp\n"), &out, model.ThemeDark, time.Hour)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), assistant.GreetingResponse)
}

func TestClassifyCommand(t *testing.T) {
	var out bytes.Buffer
	classifyCmd.SetOut(&out)
	classifyTheme = "dark"
	defer func() { classifyTheme = "light" }()

	err := classifyCmd.RunE(classifyCmd, []string{"switch", "to", "light", "mode"})
	require.NoError(t, err)
	assert.Equal(t, "theme\t"+assistant.ThemeResponse(model.ThemeDark)+"\n", out.String())

	classifyTheme = "sepia"
	err = classifyCmd.RunE(classifyCmd, []string{"hi"})
	assert.ErrorIs(t, err, assistant.ErrInvalidTheme)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	tokenUser = "alice"
	tokenTTL = time.Minute
	tokenScopes = []string{"sessions:write"}
	defer func() {
		tokenUser, tokenTTL, tokenScopes = "", 0, nil
	}()

	require.NoError(t, tokenCmd.RunE(tokenCmd, nil))

	claims, err := middleware.ParseToken("cli-test-secret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, []string{"sessions:write"}, claims.Scopes)
}
