package rest

import (
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type tokenFields struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *user  `json:"user"`
}

type user struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// authResponse accepts every observed shape: tokens at the top level, under
// "session", or under "data.session"; the user alongside the tokens, at the
// top level, or under "data.user".
type authResponse struct {
	tokenFields
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	Session      *tokenFields   `json:"session"`
	Data         *struct {
		Session *tokenFields `json:"session"`
		User    *user        `json:"user"`
	} `json:"data"`
}

func (r *authResponse) tokens() *tokenFields {
	switch {
	case r.AccessToken != "":
		return &r.tokenFields
	case r.Session != nil && r.Session.AccessToken != "":
		return r.Session
	case r.Data != nil && r.Data.Session != nil && r.Data.Session.AccessToken != "":
		return r.Data.Session
	default:
		return nil
	}
}

func (r *authResponse) account() *user {
	if t := r.tokens(); t != nil && t.User != nil && t.User.ID != "" {
		return t.User
	}
	if r.User != nil && r.User.ID != "" {
		return r.User
	}
	if r.Data != nil && r.Data.User != nil && r.Data.User.ID != "" {
		return r.Data.User
	}
	if r.ID != "" {
		return &user{ID: r.ID, Email: r.Email, UserMetadata: r.UserMetadata}
	}
	return nil
}

// normalize returns nil unless both tokens and a user id are present.
// fallbackEmail and requestedName fill gaps the authority leaves. DisplayName
// stays empty when neither the metadata nor requestedName carry one.
func (r *authResponse) normalize(fallbackEmail, requestedName string) *goSession.Session {
	t := r.tokens()
	u := r.account()
	if t == nil || u == nil {
		return nil
	}

	email := u.Email
	if email == "" {
		email = fallbackEmail
	}

	return &goSession.Session{
		UserID:       u.ID,
		Email:        email,
		DisplayName:  displayName(u.UserMetadata, requestedName),
		AvatarURL:    metaString(u.UserMetadata, "avatar_url", "avatar", "picture"),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
}

func displayName(meta map[string]any, requested string) string {
	if name := metaString(meta, "name", "full_name", "display_name"); name != "" {
		return name
	}
	return requested
}

// withNameFallback names a freshly signed-in account after its e-mail local
// part, or "User". Refresh skips it so the cached name survives.
func withNameFallback(sess *goSession.Session) *goSession.Session {
	if sess == nil || sess.DisplayName != "" {
		return sess
	}
	if local, _, ok := strings.Cut(sess.Email, "@"); ok && local != "" {
		sess.DisplayName = local
	} else {
		sess.DisplayName = "User"
	}
	return sess
}

func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
