package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	Grid() service.Grid
	Current(ctx context.Context) (*models.Timetable, error)
	Generate(ctx context.Context, actorID string, req dto.GenerateTimetableRequest) (*models.GenerationResult, error)
	Conflicts(ctx context.Context) (*models.ConflictReport, error)
	AddEntry(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	UpdateEntry(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	Import(ctx context.Context, actorID string, req dto.ImportTimetableRequest) (*models.ConflictReport, error)
	SetFinalized(ctx context.Context, actorID string, value bool) (*models.Timetable, error)
	SetApproved(ctx context.Context, actorID string, value bool) (*models.Timetable, error)
}

type timetableExporter interface {
	Export(ctx context.Context, format dto.ExportFormat) (*service.ExportFile, error)
	ParseCSV(r io.Reader) (dto.ImportTimetableRequest, error)
}

// TimetableHandler exposes generation, editing, workflow and import/export of the timetable.
type TimetableHandler struct {
	timetables timetableService
	exporter   timetableExporter
}

// NewTimetableHandler constructs a TimetableHandler.
func NewTimetableHandler(timetables timetableService, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, exporter: exporter}
}

// Get godoc
// @Summary Current timetable
// @Description Return the current timetable with its warnings and workflow flags
// @Tags Timetable
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	tt, err := h.timetables.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt, map[string]interface{}{"entries": len(tt.Entries)})
}

// Grid godoc
// @Summary Timetable grid
// @Description Return the day and time slot labels the generator fills
// @Tags Timetable
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	grid := h.timetables.Grid()
	response.JSON(c, http.StatusOK, gin.H{"days": grid.Days, "time_slots": grid.Slots}, nil)
}

// Generate godoc
// @Summary Generate timetable
// @Description Rebuild the timetable from stored preferences, or from the preferences in the body when given
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GenerateTimetableRequest false "Optional preference override"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.timetables.Generate(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Timetable, map[string]interface{}{
		"scheduled":   result.Scheduled,
		"unscheduled": len(result.Warnings),
	})
}

// Conflicts godoc
// @Summary Timetable conflicts
// @Description Report every teacher or room double-booking in the current timetable
// @Tags Timetable
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	report, err := h.timetables.Conflicts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AddEntry godoc
// @Summary Add timetable entry
// @Description Place a subject by hand; rejected when it double-books a teacher or room
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.TimetableEntryRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries [post]
func (h *TimetableHandler) AddEntry(c *gin.Context) {
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.timetables.AddEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// UpdateEntry godoc
// @Summary Update timetable entry
// @Description Move or edit an entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param payload body dto.TimetableEntryRequest true "Entry"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries/{id} [put]
func (h *TimetableHandler) UpdateEntry(c *gin.Context) {
	var req dto.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.timetables.UpdateEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// DeleteEntry godoc
// @Summary Delete timetable entry
// @Tags Timetable
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /timetable/entries/{id} [delete]
func (h *TimetableHandler) DeleteEntry(c *gin.Context) {
	if err := h.timetables.DeleteEntry(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Import timetable
// @Description Replace every entry from a JSON body, a text/csv body or a multipart "file" upload
// @Tags Timetable
// @Accept json
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImportTimetableRequest false "Entries"
// @Param file formData file false "CSV or JSON file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/import [post]
func (h *TimetableHandler) Import(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	req, err := h.importRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.timetables.Import(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"imported": len(req.Entries)})
}

func (h *TimetableHandler) importRequest(c *gin.Context) (dto.ImportTimetableRequest, error) {
	var req dto.ImportTimetableRequest
	contentType := c.ContentType()
	switch {
	case contentType == "multipart/form-data":
		header, err := c.FormFile("file")
		if err != nil {
			return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
		}
		return h.importFile(header)
	case contentType == "text/csv":
		return h.exporter.ParseCSV(c.Request.Body)
	default:
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload")
		}
		return req, nil
	}
}

func (h *TimetableHandler) importFile(header *multipart.FileHeader) (dto.ImportTimetableRequest, error) {
	var req dto.ImportTimetableRequest
	file, err := header.Open()
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload")
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return h.exporter.ParseCSV(file)
	}
	if err := json.NewDecoder(file).Decode(&req); err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import file")
	}
	return req, nil
}

// Export godoc
// @Summary Export timetable
// @Description Download the current timetable as CSV, a PDF grid or JSON
// @Tags Timetable
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv, pdf or json" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportCSV))))
	file, err := h.exporter.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}

// Finalize godoc
// @Summary Finalize timetable
// @Description Lock the timetable against regeneration and edits
// @Tags Timetable Workflow
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/finalize [post]
func (h *TimetableHandler) Finalize(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, actor string) (*models.Timetable, error) {
		return h.timetables.SetFinalized(ctx, actor, true)
	})
}

// Unfinalize godoc
// @Summary Unfinalize timetable
// @Description Unlock the timetable; any approval is withdrawn
// @Tags Timetable Workflow
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/unfinalize [post]
func (h *TimetableHandler) Unfinalize(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, actor string) (*models.Timetable, error) {
		return h.timetables.SetFinalized(ctx, actor, false)
	})
}

// Approve godoc
// @Summary Approve timetable
// @Description Approve a finalized timetable
// @Tags Timetable Workflow
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/approve [post]
func (h *TimetableHandler) Approve(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, actor string) (*models.Timetable, error) {
		return h.timetables.SetApproved(ctx, actor, true)
	})
}

// Unapprove godoc
// @Summary Unapprove timetable
// @Tags Timetable Workflow
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /timetable/unapprove [post]
func (h *TimetableHandler) Unapprove(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, actor string) (*models.Timetable, error) {
		return h.timetables.SetApproved(ctx, actor, false)
	})
}

func (h *TimetableHandler) setFlag(c *gin.Context, apply func(ctx context.Context, actor string) (*models.Timetable, error)) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	tt, err := apply(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"finalized": tt.Finalized, "approved": tt.Approved}, nil)
}
