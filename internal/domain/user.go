package domain

import "time"

// User is a registered account. Accounts start inactive and become active
// exactly once, when the profile code is redeemed through verification.
// Guest accounts are created already active by the seeder and never go
// through verification.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Gender       string
	IsActive     bool
	IsGuest      bool
	ProfileCode  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name for display.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
