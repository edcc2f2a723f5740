package domain

import "time"

// FreshTimeout is how long a locally stored user is served without refetching.
const FreshTimeout = 24 * time.Hour

// User is a profile whose authoritative copy lives on the remote service.
type User struct {
	ID        string    `json:"id"`
	Login     string    `json:"login,omitempty"`
	Name      string    `json:"name,omitempty"`
	Company   string    `json:"company,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	FetchedAt time.Time `json:"-"`
}

// IsFresh reports whether the user was fetched within timeout of now.
func (u *User) IsFresh(now time.Time, timeout time.Duration) bool {
	if u == nil || u.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(u.FetchedAt) < timeout
}

// LoggedInUser is the identity handed out by the login data source.
type LoggedInUser struct {
	UserID      string
	DisplayName string
}
