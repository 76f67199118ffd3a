package assistant

import (
	"errors"
	"strings"
	"sync"

	"github.com/inkwell/storybot/internal/model"
)

// ErrInvalidTheme is returned for theme names other than dark and light.
var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme parses a theme name case-insensitively.
func ParseTheme(s string) (model.Theme, error) {
	switch model.Theme(strings.ToLower(strings.TrimSpace(s))) {
	case model.ThemeDark:
		return model.ThemeDark, nil
	case model.ThemeLight:
		return model.ThemeLight, nil
	default:
		return "", ErrInvalidTheme
	}
}

// ThemeSource supplies the current display theme. It is read at
// classification time, never cached.
type ThemeSource interface {
	Theme() model.Theme
}

// StaticTheme is a ThemeSource that never changes.
type StaticTheme model.Theme

// Theme implements ThemeSource.
func (s StaticTheme) Theme() model.Theme {
	return model.Theme(s)
}

// ThemeState holds a mutable theme shared between a page and its widget.
type ThemeState struct {
	mu    sync.RWMutex
	theme model.Theme
}

// NewThemeState creates a theme holder. Anything but dark starts light.
func NewThemeState(theme model.Theme) *ThemeState {
	if theme != model.ThemeDark {
		theme = model.ThemeLight
	}
	return &ThemeState{theme: theme}
}

// Theme implements ThemeSource.
func (s *ThemeState) Theme() model.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Set replaces the current theme.
func (s *ThemeState) Set(theme model.Theme) error {
	if theme != model.ThemeDark && theme != model.ThemeLight {
		return ErrInvalidTheme
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

// Toggle flips between dark and light and returns the new theme.
func (s *ThemeState) Toggle() model.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == model.ThemeDark {
		s.theme = model.ThemeLight
	} else {
		s.theme = model.ThemeDark
	}
	return s.theme
}
