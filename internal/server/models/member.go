// Package models defines server-side records persisted by the repositories.
package models

import "time"

// Member is a registered account. Email is unique across members and is
// stored exactly as submitted. The plaintext password is never kept.
type Member struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
