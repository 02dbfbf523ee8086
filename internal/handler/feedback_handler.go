package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type feedbackService interface {
	Submit(ctx context.Context, author service.FeedbackAuthor, req dto.SubmitFeedbackRequest) (*models.Feedback, error)
	List(ctx context.Context) ([]models.Feedback, error)
	Clear(ctx context.Context, actorID string) (int64, error)
}

// FeedbackHandler collects and administers user feedback.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs a FeedbackHandler.
func NewFeedbackHandler(svc feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Submit feedback
// @Description Approve the published timetable or report an issue with it
// @Tags Feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitFeedbackRequest true "Feedback"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	item, err := h.service.Submit(c.Request.Context(), service.FeedbackAuthor{ID: claims.UserID, Name: claims.FullName}, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List feedback
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /feedback [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Clear godoc
// @Summary Clear feedback
// @Tags Feedback
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /feedback [delete]
func (h *FeedbackHandler) Clear(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	removed, err := h.service.Clear(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
