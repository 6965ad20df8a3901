package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20

	// PendingConfirmationMessage is returned when sign-up succeeds without a
	// session.
	PendingConfirmationMessage = "Registration successful. Please check your email to confirm your account."
	// RegisteredMessage accompanies a sign-up that issued a session.
	RegisteredMessage = "Registration successful!"
)

// ErrIncompleteSession is returned when the authority reports success but the
// payload lacks an access token or user id.
var ErrIncompleteSession = errors.New("identity: unable to retrieve session")

// Error is a non-2xx response from the authority.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: status=%d code=%s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: status=%d: %s", e.Status, e.Message)
}

// UserMessage returns the authority's own message.
func (e *Error) UserMessage() string {
	return e.Message
}

// Client talks to {BaseURL}/auth/v1 with the project API key.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client for baseURL (e.g. https://xyz.supabase.co).
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SignIn exchanges an e-mail and password for a session.
func (c *Client) SignIn(ctx context.Context, email, secret string) (*goSession.Session, error) {
	var body authResponse
	err := c.post(ctx, "/auth/v1/token?grant_type=password", "", map[string]any{
		"email":    email,
		"password": secret,
	}, &body)
	if err != nil {
		return nil, err
	}

	sess := withNameFallback(body.normalize(email, ""))
	if sess == nil {
		return nil, ErrIncompleteSession
	}
	return sess, nil
}

// SignUp registers an account. When the authority requires e-mail
// confirmation no session is returned and the outcome is pending.
func (c *Client) SignUp(ctx context.Context, email, secret, displayName string) (goSession.SignUpOutcome, error) {
	payload := map[string]any{
		"email":    email,
		"password": secret,
	}
	if displayName != "" {
		payload["data"] = map[string]string{"name": displayName}
	}

	var body authResponse
	if err := c.post(ctx, "/auth/v1/signup", "", payload, &body); err != nil {
		return goSession.SignUpOutcome{}, err
	}

	sess := withNameFallback(body.normalize(email, displayName))
	if sess == nil {
		return goSession.SignUpOutcome{Message: PendingConfirmationMessage}, nil
	}
	return goSession.SignUpOutcome{Session: sess, Message: RegisteredMessage}, nil
}

// Refresh exchanges a refresh token for a new session. Authorities that do
// not rotate refresh tokens omit refresh_token; the store keeps the old one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*goSession.Session, error) {
	var body authResponse
	err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", map[string]any{
		"refresh_token": refreshToken,
	}, &body)
	if err != nil {
		return nil, err
	}

	tokens := body.tokens()
	if tokens == nil || tokens.AccessToken == "" {
		return nil, ErrIncompleteSession
	}
	sess := body.normalize("", "")
	if sess == nil {
		sess = &goSession.Session{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	}
	return sess, nil
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *Client) post(ctx context.Context, path, bearer string, payload any, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.Unmarshal(raw, &body)

	e := &Error{Status: status, Code: body.ErrorCode}
	if e.Code == "" {
		e.Code = body.Error
	}
	for _, msg := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
