package models

import "time"

// User is an account row. Password hashes and reset tokens never serialize.
type User struct {
	ID             int        `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Role           Role       `db:"role" json:"role"`
	Approved       bool       `db:"approved" json:"approved"`
	Banned         bool       `db:"banned" json:"banned"`
	BanReason      *string    `db:"ban_reason" json:"ban_reason,omitempty"`
	BannedAt       *time.Time `db:"banned_at" json:"banned_at,omitempty"`
	BannedBy       *int       `db:"banned_by" json:"banned_by,omitempty"`
	ResetToken     *string    `db:"reset_token" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	IsOnline       bool       `db:"is_online" json:"is_online"`
	ProfilePicture string     `db:"profile_picture" json:"profile_picture"`
}

// UserSettings is the per-user preference row, created lazily on first login.
type UserSettings struct {
	UserID        int    `db:"user_id" json:"-"`
	Theme         string `db:"theme" json:"theme"`
	Notifications bool   `db:"notifications" json:"notifications"`
	SoundEffects  bool   `db:"sound_effects" json:"sound_effects"`
	FontSize      int    `db:"font_size" json:"font_size"`
	AutoLogin     bool   `db:"auto_login" json:"auto_login"`
}

// DefaultSettings returns the settings a fresh account starts with.
func DefaultSettings(userID int) UserSettings {
	return UserSettings{
		UserID:        userID,
		Theme:         "dark",
		Notifications: true,
		SoundEffects:  true,
		FontSize:      14,
	}
}
