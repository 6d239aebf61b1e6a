// Package model defines the data structures used throughout the application.
package model

import "time"

// Field limits shared by the forms, the services and the schema.
const (
	MaxUsernameLength = 30
	MaxEmailLength    = 120
	MaxAboutMeLength  = 250
	MaxPasswordLength = 72 // bcrypt ignores anything past 72 bytes
)

// User is a registered account.
//
// PasswordHash holds the bcrypt digest and is never serialised. Email is
// stored trimmed and lower-cased; Username is kept exactly as registered.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"-"         db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	AboutMe      string    `json:"aboutMe"   db:"about_me"`
	LastSeen     time.Time `json:"lastSeen"  db:"last_seen"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
