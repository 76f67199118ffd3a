package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxUtteranceLength bounds a single submitted utterance in bytes.
const MaxUtteranceLength = 4096

// ValidateUtterance validates submitted text. Blank text is left to the
// assistant, which ignores it.
func ValidateUtterance(text string) error {
	if len(text) > MaxUtteranceLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}
