package models

import "time"

// User represents a person who can own or join projects.
// Users are created on first successful authentication and never deleted.
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName         string     `json:"display_name"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	Password            string     `gorm:"not null" json:"-"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}

// Name returns the display name, falling back to the email address.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
