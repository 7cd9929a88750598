// Package server implements the validation and sanitization gate that every
// join request and chat message passes before reaching the room registry.
package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	maxUserNameLength = 30
	maxRoomIDLength   = 20
	maxMessageLength  = 500
)

// validate is stateless and safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateJoin checks a join payload before any registry mutation and
// returns a ValidationError describing the first failing field.
func ValidateJoin(req JoinRequest) error {
	if strings.TrimSpace(req.UserName) == "" {
		return &ValidationError{Reason: "userName is required"}
	}
	if strings.TrimSpace(req.RoomID) == "" {
		return &ValidationError{Reason: "roomId is required"}
	}

	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &ValidationError{Reason: joinFieldReason(fieldErrs[0])}
		}
		return &ValidationError{Reason: "invalid join request"}
	}
	return nil
}

func joinFieldReason(fe validator.FieldError) string {
	switch fe.StructField() {
	case "UserName":
		return fmt.Sprintf("userName must be at most %d characters", maxUserNameLength)
	case "RoomID":
		return fmt.Sprintf("roomId must be at most %d characters", maxRoomIDLength)
	}
	return "invalid join request"
}

// ValidateMessage checks a chat message body. Length is measured before
// sanitization so entity expansion cannot push a valid message over the cap.
func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Reason: "message must not be empty"}
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return &ValidationError{Reason: fmt.Sprintf("message must be at most %d characters", maxMessageLength)}
	}
	return nil
}

// sanitizer maps the five markup-significant characters to HTML entities.
var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes markup-significant characters and trims surrounding
// whitespace. Callers apply it exactly once per inbound message; re-applying
// it to already-escaped text would double-escape the entities.
func Sanitize(body string) string {
	return strings.TrimSpace(sanitizer.Replace(body))
}
