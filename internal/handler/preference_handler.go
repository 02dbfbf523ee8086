package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type preferenceService interface {
	Submit(ctx context.Context, kind scheduler.SubmitterType, submitterID string, req dto.SubmitPreferenceRequest) (*models.StoredPreference, error)
	All(ctx context.Context) (scheduler.Preferences, error)
	Clear(ctx context.Context) (int64, error)
}

// PreferenceHandler exposes preference submission and administration.
type PreferenceHandler struct {
	service preferenceService
}

// NewPreferenceHandler constructs a PreferenceHandler.
func NewPreferenceHandler(svc preferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: svc}
}

// SubmitFaculty godoc
// @Summary Submit faculty preference
// @Description Store the caller's preferred slot for a subject they teach; resubmitting replaces the previous preference
// @Tags Preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitPreferenceRequest true "Preference"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /preferences/faculty [post]
func (h *PreferenceHandler) SubmitFaculty(c *gin.Context) {
	h.submit(c, scheduler.SubmitterFaculty)
}

// SubmitStudent godoc
// @Summary Submit student preference
// @Description Store the caller's preferred slot for a subject; resubmitting replaces the previous preference
// @Tags Preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitPreferenceRequest true "Preference"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /preferences/student [post]
func (h *PreferenceHandler) SubmitStudent(c *gin.Context) {
	h.submit(c, scheduler.SubmitterStudent)
}

func (h *PreferenceHandler) submit(c *gin.Context, kind scheduler.SubmitterType) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preference payload"))
		return
	}
	pref, err := h.service.Submit(c.Request.Context(), kind, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pref)
}

// List godoc
// @Summary List preferences
// @Description Return every stored preference grouped by faculty and student submitter id
// @Tags Preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) List(c *gin.Context) {
	prefs, err := h.service.All(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, map[string]interface{}{
		"faculty_count": len(prefs.Faculty),
		"student_count": len(prefs.Student),
	})
}

// Clear godoc
// @Summary Clear preferences
// @Description Remove all faculty and student preferences
// @Tags Preferences
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /preferences [delete]
func (h *PreferenceHandler) Clear(c *gin.Context) {
	removed, err := h.service.Clear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
