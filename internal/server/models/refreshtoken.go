package models

import "time"

// RefreshToken is the single live refresh token of a member. Saving a new
// one for the same MemberID replaces the previous record.
type RefreshToken struct {
	MemberID  string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
