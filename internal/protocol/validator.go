package protocol

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxMessageBytes = 4096
	MaxTextChars    = 2000
)

// ValidateChat checks that a chat message carries forwardable content:
// either text within limits or a media reference. Both may be present
// (media with caption), but not neither.
func ValidateChat(m ChatMsg) error {
	if m.Text == "" && m.MediaID == "" {
		return fmt.Errorf("message has no text or media")
	}
	if m.Text != "" {
		if err := ValidateText(m.Text); err != nil {
			return err
		}
	}
	if m.Caption != "" {
		if err := ValidateText(m.Caption); err != nil {
			return fmt.Errorf("caption: %w", err)
		}
	}
	return nil
}

// ValidateText checks a text payload against size and encoding limits.
func ValidateText(text string) error {
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("text exceeds %d byte limit", MaxMessageBytes)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("text exceeds %d character limit", MaxTextChars)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text contains invalid UTF-8")
	}
	return nil
}
