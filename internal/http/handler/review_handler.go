package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentalapp/mentalapp-api/internal/http/middleware"
	"github.com/mentalapp/mentalapp-api/internal/service"
)

// ReviewHandler exposes the user-scoped reviews resource.
type ReviewHandler struct {
	Reviews *service.ReviewService
}

// NewReviewHandler creates the handler set.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

// Add creates a review about the user in the path.
func (h *ReviewHandler) Add(c *gin.Context) {
	author, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthenticated.", map[string]string{"auth": "Bearer token required."})
		return
	}

	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	input, ok := bindReview(c)
	if !ok {
		return
	}

	created, err := h.Reviews.Add(c.Request.Context(), userID, author.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, "Review added successfully.", created)
}

// Edit updates a review authored by the caller.
func (h *ReviewHandler) Edit(c *gin.Context) {
	author, ok := middleware.CurrentUser(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "Unauthenticated.", map[string]string{"auth": "Bearer token required."})
		return
	}

	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	reviewID, ok := pathID(c, "reviewId")
	if !ok {
		return
	}

	input, ok := bindReview(c)
	if !ok {
		return
	}

	updated, err := h.Reviews.Edit(c.Request.Context(), userID, reviewID, author.ID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Review updated successfully.", updated)
}

// List returns the reviews about the user in the path.
func (h *ReviewHandler) List(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	reviews, err := h.Reviews.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Reviews retrieved successfully.", reviews)
}

func bindReview(c *gin.Context) (service.ReviewInput, bool) {
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{"body": "Invalid payload."})
		return service.ReviewInput{}, false
	}
	return service.ReviewInput{Rating: req.Rating, Comment: req.Comment}, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondFailure(c, http.StatusBadRequest, "The given data was invalid.", map[string]string{name: "The " + name + " must be a positive integer."})
		return 0, false
	}
	return id, true
}
