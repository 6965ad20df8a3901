package local

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotConfirmed    = errors.New("email not confirmed")
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrSignInRateLimited    = errors.New("sign-in rate limited")
	ErrRefreshRateLimited   = errors.New("refresh rate limited")
	ErrRefreshInvalid       = errors.New("refresh token invalid")
	ErrRefreshReused        = errors.New("refresh token reuse detected")
	ErrWeakPassword         = errors.New("password rejected")
	ErrAuthorityUnavailable = errors.New("identity authority unavailable")
	ErrAccessTokenInvalid   = errors.New("access token invalid")
)

// Error pairs a sentinel with the message shown to the user. Cause holds the
// underlying storage failure, if any.
type Error struct {
	Err     error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Err.Error() + ": " + e.Cause.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the user-facing message.
func (e *Error) UserMessage() string {
	return e.Message
}

func userError(err error) error {
	msg, ok := userMessages[err]
	if !ok {
		msg = "Something went wrong. Please try again."
	}
	return &Error{Err: err, Message: msg}
}

func unavailable(cause error) error {
	return &Error{Err: ErrAuthorityUnavailable, Message: userMessages[ErrAuthorityUnavailable], Cause: cause}
}

var userMessages = map[error]string{
	ErrInvalidCredentials:   "Invalid login credentials",
	ErrEmailNotConfirmed:    "Email not confirmed",
	ErrAccountExists:        "User already registered",
	ErrSignInRateLimited:    "Too many sign-in attempts. Please try again later.",
	ErrRefreshRateLimited:   "Too many refresh attempts. Please try again later.",
	ErrRefreshInvalid:       "Invalid Refresh Token",
	ErrRefreshReused:        "Invalid Refresh Token",
	ErrWeakPassword:         "Password should be at least 6 characters",
	ErrAuthorityUnavailable: "Service temporarily unavailable",
	ErrAccessTokenInvalid:   "Invalid access token",
}
