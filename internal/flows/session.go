package flows

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrProfileCorrupt is returned when the cached profile cannot be decoded or
// carries no user id.
var ErrProfileCorrupt = errors.New("cached profile corrupt")

// Session is the authenticated identity and credentials held client-side.
type Session struct {
	UserID       string
	Email        string
	DisplayName  string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
}

// Profile is the non-sensitive part of a Session cached in the plain store.
type Profile struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatar,omitempty"`
}

// SignUpOutcome is either an issued session or a pending-confirmation message.
type SignUpOutcome struct {
	Session *Session
	Message string
}

// Pending reports whether the identity service withheld a session until the
// account is confirmed out of band.
func (o SignUpOutcome) Pending() bool {
	return o.Session == nil
}

// Profile returns the cacheable profile fields.
func (s *Session) Profile() Profile {
	if s == nil {
		return Profile{}
	}
	return Profile{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		AvatarURL:   s.AvatarURL,
	}
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// EncodeProfile renders p in the flat JSON form stored under the profile key.
func EncodeProfile(p Profile) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeProfile parses a cached profile. A blank user id is corrupt.
func DecodeProfile(raw string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Profile{}, ErrProfileCorrupt
	}
	if strings.TrimSpace(p.UserID) == "" {
		return Profile{}, ErrProfileCorrupt
	}
	return p, nil
}

func sessionFromProfile(p Profile, accessToken, refreshToken string) *Session {
	return &Session{
		UserID:       p.UserID,
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		AvatarURL:    p.AvatarURL,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
}

// usable reports whether an identity payload can be committed.
func usable(s *Session) bool {
	return s != nil && s.UserID != "" && s.AccessToken != ""
}
