package domain

import (
	"strings"
	"time"
)

type UserID string

type User struct {
	ID           UserID    `json:"id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatName is the name shown next to the user's chat events.
func (u *User) ChatName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if local := u.emailLocalPart(); local != "" {
		return local
	}
	return "Anonymous"
}

// ProfileName is the heading on the profile page.
func (u *User) ProfileName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "User"
}

// Initial is the avatar fallback letter.
func (u *User) Initial() string {
	if u.Email == "" {
		return "U"
	}
	return strings.ToUpper(u.Email[:1])
}

// KitchenHandle prefixes the user's kitchen channel names.
func (u *User) KitchenHandle() string {
	if u == nil || u.ID == "" {
		return "user"
	}
	return string(u.ID)
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Username: u.ChatName(), Avatar: u.PhotoURL}
}

func (u *User) emailLocalPart() string {
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// AuthState is what the auth collaborator reports to subscribers.
type AuthState struct {
	User      *User `json:"user"`
	IsLoading bool  `json:"is_loading"`
}

type Location struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Fresh reports whether the fix is younger than maxAge.
func (l *Location) Fresh(now time.Time, maxAge time.Duration) bool {
	return l != nil && now.Sub(l.AcquiredAt) <= maxAge
}
