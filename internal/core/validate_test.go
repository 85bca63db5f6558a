package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNewMessage(t *testing.T) {
	sender, content, err := ValidateNewMessage("  Ann ", "\tHi there\n")
	require.NoError(t, err)
	assert.Equal(t, "Ann", sender)
	assert.Equal(t, "Hi there", content)
}

func TestValidateNewMessageLimits(t *testing.T) {
	cases := []struct {
		name    string
		sender  string
		content string
		field   string
	}{
		{"blank sender", "   ", "hello", "sender"},
		{"empty content", "Ann", "", "content"},
		{"long sender", strings.Repeat("a", MaxSenderLength+1), "hello", "sender"},
		{"long content", "Ann", strings.Repeat("b", MaxContentLength+1), "content"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ValidateNewMessage(tc.sender, tc.content)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestValidateNewMessageCountsCharactersNotBytes(t *testing.T) {
	_, content, err := ValidateNewMessage("Zoë", strings.Repeat("é", MaxContentLength))
	require.NoError(t, err)
	assert.Len(t, []rune(content), MaxContentLength)
}

func TestValidateNewMessageBoundaries(t *testing.T) {
	_, _, err := ValidateNewMessage(strings.Repeat("a", MaxSenderLength), strings.Repeat("b", MaxContentLength))
	assert.NoError(t, err)

	_, _, err = ValidateNewMessage("a", "b")
	assert.NoError(t, err)
}

func TestValidateMessageID(t *testing.T) {
	id, err := ValidateMessageID("  1b4e28ba-2fa1-11d2-883f-0016d3cca427 ")
	require.NoError(t, err)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", id)

	_, err = ValidateMessageID(" ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
