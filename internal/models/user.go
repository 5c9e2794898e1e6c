package models

import "time"

// User is the identity a connection binds to. The core flips the presence
// fields; everything else belongs to the profile service.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Handle     string    `gorm:"uniqueIndex;size:64" json:"handle"`
	Token      string    `gorm:"uniqueIndex;size:64" json:"-"` // opaque bearer credential
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
