package service

import (
	"time"

	"github.com/mentalapp/mentalapp-api/internal/domain"
)

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email                string
	Password             string
	PasswordConfirmation string
	FirstName            string
	LastName             string
	Gender               string
}

// RegisteredUser is the payload returned by a successful registration.
type RegisteredUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UserViewModel represents account data returned to clients. The password
// hash and profile code never leave the service layer.
type UserViewModel struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthTokens bundles an issued token pair with the account summary.
type AuthTokens struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	User         UserViewModel `json:"user"`
}

// ReviewInput carries the review form fields.
type ReviewInput struct {
	Rating  int
	Comment string
}

// ReviewViewModel represents a review returned to clients.
type ReviewViewModel struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AuthorID  int64     `json:"author_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserViewModel(user domain.User) UserViewModel {
	return UserViewModel{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Gender:    user.Gender,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

func newReviewViewModel(review domain.Review) ReviewViewModel {
	return ReviewViewModel{
		ID:        review.ID,
		UserID:    review.UserID,
		AuthorID:  review.AuthorID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}
