package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/storybot/internal/model"
)

func TestParseTheme(t *testing.T) {
	got, err := ParseTheme(" Dark ")
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, got)

	got, err = ParseTheme("light")
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, got)

	_, err = ParseTheme("sepia")
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestThemeState(t *testing.T) {
	s := NewThemeState("")
	assert.Equal(t, model.ThemeLight, s.Theme())

	assert.Equal(t, model.ThemeDark, s.Toggle())
	assert.Equal(t, model.ThemeLight, s.Toggle())

	require.NoError(t, s.Set(model.ThemeDark))
	assert.Equal(t, model.ThemeDark, s.Theme())
	assert.ErrorIs(t, s.Set("sepia"), ErrInvalidTheme)
	assert.Equal(t, model.ThemeDark, s.Theme())
}
