package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/storybot/internal/model"
)

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		intent    Intent
		response  string
	}{
		{"greeting hello", "hello there", IntentGreeting, GreetingResponse},
		{"greeting hey", "Hey!", IntentGreeting, GreetingResponse},
		{"greeting hi substring", "what is this", IntentGreeting, GreetingResponse},
		{"help", "I need help", IntentHelp, HelpResponse},
		{"about blog", "Tell me about the blog", IntentAbout, AboutResponse},
		{"about without blog", "what about me", IntentFallback, FallbackResponse},
		{"write", "how do I write", IntentCreatePost, CreatePostResponse},
		{"post", "new post", IntentCreatePost, CreatePostResponse},
		{"story", "my story", IntentCreatePost, CreatePostResponse},
		{"account", "create an account", IntentRegister, RegisterResponse},
		{"sign up", "where do I sign up", IntentRegister, RegisterResponse},
		{"register", "register me", IntentRegister, RegisterResponse},
		{"login", "login please", IntentLogin, LoginResponse},
		{"sign in", "how to sign in", IntentLogin, LoginResponse},
		{"dashboard", "open my dashboard", IntentDashboard, DashboardResponse},
		{"comment", "can I comment", IntentComment, CommentResponse},
		{"thanks", "thanks a lot", IntentThanks, ThanksResponse},
		{"fallback", "xyzzy", IntentFallback, FallbackResponse},
		{"empty", "", IntentFallback, FallbackResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.utterance, model.ThemeLight)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.response, got.Response)
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	t.Run("greeting beats about blog", func(t *testing.T) {
		got := Classify("hello, tell me about the blog", model.ThemeDark)
		assert.Equal(t, IntentGreeting, got.Intent)
		assert.Equal(t, GreetingResponse, got.Response)
	})

	t.Run("about blog beats write", func(t *testing.T) {
		got := Classify("I want to write about the blog", model.ThemeLight)
		assert.Equal(t, IntentAbout, got.Intent)
	})

	t.Run("help beats comment", func(t *testing.T) {
		got := Classify("help me comment", model.ThemeLight)
		assert.Equal(t, IntentHelp, got.Intent)
	})

	t.Run("post beats account", func(t *testing.T) {
		got := Classify("post from my account", model.ThemeLight)
		assert.Equal(t, IntentCreatePost, got.Intent)
	})
}

func TestClassifyTheme(t *testing.T) {
	dark := Classify("DARK MODE please", model.ThemeDark)
	assert.Equal(t, IntentTheme, dark.Intent)
	assert.Contains(t, dark.Response, "the sun icon")

	light := Classify("dark mode please", model.ThemeLight)
	assert.Equal(t, IntentTheme, light.Intent)
	assert.Contains(t, light.Response, "the moon icon")

	other := Classify("change the theme", model.Theme("sepia"))
	assert.Contains(t, other.Response, "the moon icon")
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, IntentDashboard, Classify("DASHBOARD", model.ThemeLight).Intent)
	assert.Equal(t, IntentLogin, Classify("Sign In", model.ThemeLight).Intent)
}

func TestRulesOrder(t *testing.T) {
	rules := NewClassifier().Rules()
	require.Len(t, rules, 10)

	want := []Intent{
		IntentGreeting, IntentHelp, IntentAbout, IntentCreatePost, IntentRegister,
		IntentLogin, IntentDashboard, IntentComment, IntentThanks, IntentTheme,
	}
	for i, rule := range rules {
		assert.Equal(t, want[i], rule.Intent, "rule %d", i)
	}

	rules[0] = Rule{Intent: "mutated"}
	assert.Equal(t, IntentGreeting, NewClassifier().Rules()[0].Intent)
}

func TestClassifierWithCustomRules(t *testing.T) {
	c := NewClassifierWithRules([]Rule{
		{Intent: "pricing", Match: ContainsAll("price", "plan"), Respond: fixed("It is free.")},
	}, "no idea")

	assert.Equal(t, Result{Intent: "pricing", Response: "It is free."}, c.Classify("Price of the PLAN?", model.ThemeLight))
	assert.Equal(t, Result{Intent: IntentFallback, Response: "no idea"}, c.Classify("price", model.ThemeLight))
}
