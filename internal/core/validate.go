package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type newMessage struct {
	Sender  string `validate:"required,max=50"`
	Content string `validate:"required,max=280"`
}

type messageRef struct {
	ID string `validate:"required"`
}

// ValidateNewMessage trims sender and content and checks their lengths in
// characters. Trimmed values are returned on success.
func ValidateNewMessage(sender, content string) (string, string, error) {
	in := newMessage{
		Sender:  strings.TrimSpace(sender),
		Content: strings.TrimSpace(content),
	}
	if err := validate.Struct(in); err != nil {
		return "", "", translate(err)
	}
	return in.Sender, in.Content, nil
}

// ValidateMessageID trims and checks a message id supplied by a caller.
func ValidateMessageID(id string) (string, error) {
	ref := messageRef{ID: strings.TrimSpace(id)}
	if err := validate.Struct(ref); err != nil {
		return "", translate(err)
	}
	return ref.ID, nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "is required and cannot be blank"}
	case "max":
		return &ValidationError{Field: field, Reason: fmt.Sprintf("is too long (max %s characters)", fe.Param())}
	default:
		return &ValidationError{Field: field, Reason: "is invalid"}
	}
}
