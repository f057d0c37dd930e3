package domain

import "time"

// Review is written by one user (the author) about another (the subject).
// Only the author may edit it afterwards.
type Review struct {
	ID        int64
	UserID    int64
	AuthorID  int64
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
