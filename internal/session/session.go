// Package session carries the authenticated identity through service calls.
package session

import (
	"context"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
)

// Session is the identity a request acts as. It is derived from a verified
// access token and passed explicitly to every store operation.
type Session struct {
	UserID      string
	DisplayName string
	Email       string
	AvatarURL   string
}

// FromUser builds a session for a loaded user record.
func FromUser(u *models.User) Session {
	return Session{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}

// Name returns the display name, falling back to "Someone".
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return "Someone"
}

// IsZero reports whether the session carries no identity.
func (s Session) IsZero() bool {
	return s.UserID == ""
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && !s.IsZero()
}
