package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mentalapp/mentalapp-api/internal/domain"
	"github.com/mentalapp/mentalapp-api/internal/repository"
)

// ReviewService manages reviews nested under a subject user.
type ReviewService struct {
	reviews   repository.ReviewRepository
	users     repository.UserRepository
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewReviewService wires dependencies.
func NewReviewService(reviews repository.ReviewRepository, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		users:     users,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/mentalapp/mentalapp-api/internal/service"),
	}
}

// Add creates a review about the subject user, authored by the caller.
func (s *ReviewService) Add(ctx context.Context, userID, authorID int64, input ReviewInput) (ReviewViewModel, error) {
	ctx, span := s.startSpan(ctx, "ReviewService.Add")
	defer span.End()

	if fields := validateReview(input); len(fields) > 0 {
		return ReviewViewModel{}, newValidationError(fields)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReviewViewModel{}, newNotFoundError("user", "No account matches this user id.")
		}
		span.RecordError(err)
		return ReviewViewModel{}, fmt.Errorf("review lookup user: %w", err)
	}

	review := domain.Review{
		ID:       s.snowflake.Generate().Int64(),
		UserID:   userID,
		AuthorID: authorID,
		Rating:   input.Rating,
		Comment:  strings.TrimSpace(input.Comment),
	}

	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		span.RecordError(err)
		return ReviewViewModel{}, fmt.Errorf("create review: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("audit",
			zap.String("event", "review.add.success"),
			zap.Int64("review_id", created.ID),
			zap.Int64("user_id", userID),
			zap.Int64("author_id", authorID),
		)
	}
	return newReviewViewModel(created), nil
}

// Edit updates a review. Only its author may edit it.
func (s *ReviewService) Edit(ctx context.Context, userID, reviewID, authorID int64, input ReviewInput) (ReviewViewModel, error) {
	ctx, span := s.startSpan(ctx, "ReviewService.Edit")
	defer span.End()

	if fields := validateReview(input); len(fields) > 0 {
		return ReviewViewModel{}, newValidationError(fields)
	}

	review, err := s.reviews.GetByID(ctx, userID, reviewID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReviewViewModel{}, newNotFoundError("review", "No review matches this id.")
	}
	if err != nil {
		span.RecordError(err)
		return ReviewViewModel{}, fmt.Errorf("edit lookup review: %w", err)
	}

	if review.AuthorID != authorID {
		return ReviewViewModel{}, &Error{
			Status:  http.StatusForbidden,
			Message: "Forbidden.",
			Fields:  map[string]string{"review": "Only the author may edit this review."},
		}
	}

	review.Rating = input.Rating
	review.Comment = strings.TrimSpace(input.Comment)

	updated, err := s.reviews.Update(ctx, review)
	if err != nil {
		span.RecordError(err)
		return ReviewViewModel{}, fmt.Errorf("update review: %w", err)
	}
	return newReviewViewModel(updated), nil
}

// List returns the reviews written about the subject user, newest first.
func (s *ReviewService) List(ctx context.Context, userID int64) ([]ReviewViewModel, error) {
	ctx, span := s.startSpan(ctx, "ReviewService.List")
	defer span.End()

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("user", "No account matches this user id.")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("list lookup user: %w", err)
	}

	reviews, err := s.reviews.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	models := make([]ReviewViewModel, 0, len(reviews))
	for _, review := range reviews {
		models = append(models, newReviewViewModel(review))
	}
	return models, nil
}

func validateReview(input ReviewInput) map[string]string {
	fields := make(map[string]string)
	if input.Rating < 1 || input.Rating > 5 {
		fields["rating"] = "The rating must be between 1 and 5."
	}
	if strings.TrimSpace(input.Comment) == "" {
		fields["comment"] = "The comment field is required."
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *ReviewService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}
