// Package assistant implements StoryBot, the blog's rule-based chat
// assistant: an ordered keyword classifier, an append-only conversation
// store and the controller that runs one turn at a time.
package assistant

import (
	"fmt"
	"strings"

	"github.com/inkwell/storybot/internal/model"
)

// Intent labels the rule that produced a response.
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentHelp       Intent = "help"
	IntentAbout      Intent = "about"
	IntentCreatePost Intent = "create_post"
	IntentRegister   Intent = "register"
	IntentLogin      Intent = "login"
	IntentDashboard  Intent = "dashboard"
	IntentComment    Intent = "comment"
	IntentThanks     Intent = "thanks"
	IntentTheme      Intent = "theme"
	IntentFallback   Intent = "fallback"
)

// Canned responses.
const (
	GreetingResponse   = "Hello! How can I assist you with the blog today?"
	HelpResponse       = "I can help you navigate the blog, find stories, or answer questions about the content. What would you like to know?"
	AboutResponse      = "Inkwell is a platform where users can share their stories, experiences, and insights. Users can create accounts, write posts, comment on others' stories, and save their favorites."
	CreatePostResponse = "To create a new story, click the 'Write Story' button in the navigation bar. You'll need to be logged in to publish your content."
	RegisterResponse   = "To create an account, click 'Join Now' in the navigation bar. You'll need to provide a username, email, and password."
	LoginResponse      = "You can sign in by clicking the 'Login' button in the navigation bar and entering your credentials."
	DashboardResponse  = "The dashboard shows all your stories and comments. You can access it by clicking your profile icon in the navigation bar after logging in."
	CommentResponse    = "You can comment on any story by scrolling to the bottom of the post and typing in the comment box. You need to be logged in to comment."
	ThanksResponse     = "You're welcome! I'm happy to help. Is there anything else you'd like to know?"
	FallbackResponse   = "I'm not sure I understand. Could you ask in a different way? I can help with navigation, finding stories, or answering questions about the blog."

	// SeedGreeting opens every conversation.
	SeedGreeting = "Hi there! I'm StoryBot, your blog assistant. How can I help you today?"
)

// ThemeResponse names the toggle icon that switches away from theme.
func ThemeResponse(theme model.Theme) string {
	icon := "moon"
	if theme == model.ThemeDark {
		icon = "sun"
	}
	return fmt.Sprintf("You can toggle between dark and light mode by clicking the %s icon in the navigation bar.", icon)
}

// Rule pairs a predicate over a lower-cased utterance with a response.
type Rule struct {
	Intent  Intent
	Match   func(utterance string) bool
	Respond func(theme model.Theme) string
}

// Result is the outcome of a classification.
type Result struct {
	Intent   Intent
	Response string
}

// ContainsAny matches when any token is a substring of the utterance.
func ContainsAny(tokens ...string) func(string) bool {
	return func(u string) bool {
		for _, t := range tokens {
			if strings.Contains(u, t) {
				return true
			}
		}
		return false
	}
}

// ContainsAll matches when every token is a substring of the utterance.
func ContainsAll(tokens ...string) func(string) bool {
	return func(u string) bool {
		for _, t := range tokens {
			if !strings.Contains(u, t) {
				return false
			}
		}
		return true
	}
}

func fixed(response string) func(model.Theme) string {
	return func(model.Theme) string { return response }
}

// Rule order is significant: the first match wins.
var defaultRules = []Rule{
	{Intent: IntentGreeting, Match: ContainsAny("hello", "hi", "hey"), Respond: fixed(GreetingResponse)},
	{Intent: IntentHelp, Match: ContainsAny("help"), Respond: fixed(HelpResponse)},
	{Intent: IntentAbout, Match: ContainsAll("about", "blog"), Respond: fixed(AboutResponse)},
	{Intent: IntentCreatePost, Match: ContainsAny("write", "post", "story"), Respond: fixed(CreatePostResponse)},
	{Intent: IntentRegister, Match: ContainsAny("account", "sign up", "register"), Respond: fixed(RegisterResponse)},
	{Intent: IntentLogin, Match: ContainsAny("login", "sign in"), Respond: fixed(LoginResponse)},
	{Intent: IntentDashboard, Match: ContainsAny("dashboard"), Respond: fixed(DashboardResponse)},
	{Intent: IntentComment, Match: ContainsAny("comment"), Respond: fixed(CommentResponse)},
	{Intent: IntentThanks, Match: ContainsAny("thank"), Respond: fixed(ThanksResponse)},
	{Intent: IntentTheme, Match: ContainsAny("dark mode", "light mode", "theme"), Respond: ThemeResponse},
}

// Classifier maps utterances to canned responses.
type Classifier struct {
	rules    []Rule
	fallback Result
}

// NewClassifier creates a classifier with the StoryBot rule set.
func NewClassifier() *Classifier {
	return NewClassifierWithRules(defaultRules, FallbackResponse)
}

// NewClassifierWithRules creates a classifier over an ordered rule list.
func NewClassifierWithRules(rules []Rule, fallback string) *Classifier {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Classifier{
		rules:    copied,
		fallback: Result{Intent: IntentFallback, Response: fallback},
	}
}

// Rules returns the ordered rule list.
func (c *Classifier) Rules() []Rule {
	copied := make([]Rule, len(c.rules))
	copy(copied, c.rules)
	return copied
}

// Classify returns the response of the first matching rule, or the
// fallback. It has no side effects.
func (c *Classifier) Classify(utterance string, theme model.Theme) Result {
	lower := strings.ToLower(utterance)
	for _, rule := range c.rules {
		if rule.Match(lower) {
			return Result{Intent: rule.Intent, Response: rule.Respond(theme)}
		}
	}
	return c.fallback
}

var defaultClassifier = NewClassifier()

// Classify runs the default StoryBot classifier.
func Classify(utterance string, theme model.Theme) Result {
	return defaultClassifier.Classify(utterance, theme)
}
