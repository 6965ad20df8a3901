package goSession

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ValidateSignUp checks the local sign-up preconditions in the order the user
// would fix them and returns a *ValidationError for the first one that fails.
// It never contacts the network.
func ValidateSignUp(cfg ValidationConfig, req SignUpRequest) error {
	email := strings.TrimSpace(req.Email)

	if email == "" || req.Secret == "" || req.ConfirmSecret == "" {
		return &ValidationError{Field: blankField(email, req), Message: "All fields are required"}
	}
	if cfg.RequireDisplayName && strings.TrimSpace(req.DisplayName) == "" {
		return &ValidationError{Field: "displayName", Message: "All fields are required"}
	}

	if utf8.RuneCountInString(req.Secret) < cfg.MinSecretLength {
		return &ValidationError{
			Field:   "secret",
			Message: fmt.Sprintf("Password must be at least %d characters", cfg.MinSecretLength),
		}
	}

	if req.Secret != req.ConfirmSecret {
		return &ValidationError{Field: "confirmSecret", Message: "Passwords do not match"}
	}

	if cfg.CheckEmailSyntax {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return &ValidationError{Field: "email", Message: "Please enter a valid email address"}
		}
	}

	return nil
}

func blankField(email string, req SignUpRequest) string {
	switch {
	case email == "":
		return "email"
	case req.Secret == "":
		return "secret"
	default:
		return "confirmSecret"
	}
}
