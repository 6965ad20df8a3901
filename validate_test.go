package goSession

import (
	"errors"
	"testing"
)

func TestValidateSignUpOrder(t *testing.T) {
	cfg := DefaultConfig().Validation

	tests := []struct {
		name      string
		cfg       func(*ValidationConfig)
		req       SignUpRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "all blank reports required first",
			req:       SignUpRequest{},
			wantField: "email",
			wantMsg:   "All fields are required",
		},
		{
			name:      "blank confirmation",
			req:       SignUpRequest{Email: "a@b.com", Secret: "pw123456"},
			wantField: "confirmSecret",
			wantMsg:   "All fields are required",
		},
		{
			name:      "display name required when configured",
			cfg:       func(c *ValidationConfig) { c.RequireDisplayName = true },
			req:       SignUpRequest{Email: "a@b.com", Secret: "pw123456", ConfirmSecret: "pw123456"},
			wantField: "displayName",
			wantMsg:   "All fields are required",
		},
		{
			name:      "short beats mismatch",
			req:       SignUpRequest{Email: "a@b.com", Secret: "pw1", ConfirmSecret: "pw2"},
			wantField: "secret",
			wantMsg:   "Password must be at least 6 characters",
		},
		{
			name:      "length counts characters",
			cfg:       func(c *ValidationConfig) { c.MinSecretLength = 4 },
			req:       SignUpRequest{Email: "a@b.com", Secret: "ñññ", ConfirmSecret: "ñññ"},
			wantField: "secret",
			wantMsg:   "Password must be at least 4 characters",
		},
		{
			name:      "mismatch",
			req:       SignUpRequest{Email: "a@b.com", Secret: "pw123456", ConfirmSecret: "pw123457"},
			wantField: "confirmSecret",
			wantMsg:   "Passwords do not match",
		},
		{
			name:      "display name form rejected",
			req:       SignUpRequest{Email: "A <a@b.com>", Secret: "pw123456", ConfirmSecret: "pw123456"},
			wantField: "email",
			wantMsg:   "Please enter a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.cfg != nil {
				tt.cfg(&c)
			}
			err := ValidateSignUp(c, tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ValidationError must match ErrValidation")
			}
			if verr.Field != tt.wantField || verr.Message != tt.wantMsg {
				t.Fatalf("got (%q, %q), want (%q, %q)", verr.Field, verr.Message, tt.wantField, tt.wantMsg)
			}
		})
	}
}

func TestValidateSignUpAccepts(t *testing.T) {
	cfg := DefaultConfig().Validation
	req := SignUpRequest{Email: " a@b.com ", Secret: "pw123456", ConfirmSecret: "pw123456"}
	if err := ValidateSignUp(cfg, req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cfg.CheckEmailSyntax = false
	req.Email = "not-an-email"
	if err := ValidateSignUp(cfg, req); err != nil {
		t.Fatalf("syntax check disabled, got %v", err)
	}
}
