package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceStub struct {
	tt          *models.Timetable
	generateReq dto.GenerateTimetableRequest
	generateErr error
	imported    dto.ImportTimetableRequest
	editErr     error
	flagCalls   []string
}

func newTimetableServiceStub() *timetableServiceStub {
	return &timetableServiceStub{tt: &models.Timetable{
		ID: "current",
		Entries: []models.TimetableEntry{
			{ID: "e1", Subject: "Math", Day: "Monday", TimeSlot: "9:00 AM", Teacher: "Smith", Room: "101"},
		},
		Warnings: []string{},
	}}
}

func (s *timetableServiceStub) Grid() service.Grid {
	return service.Grid{Days: scheduler.Weekdays, Slots: scheduler.TimeSlots}
}

func (s *timetableServiceStub) Current(ctx context.Context) (*models.Timetable, error) {
	return s.tt, nil
}

func (s *timetableServiceStub) Generate(ctx context.Context, actorID string, req dto.GenerateTimetableRequest) (*models.GenerationResult, error) {
	s.generateReq = req
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &models.GenerationResult{Timetable: s.tt, Scheduled: len(s.tt.Entries), Warnings: []string{"Could not find slot for subject: Art"}}, nil
}

func (s *timetableServiceStub) Conflicts(ctx context.Context) (*models.ConflictReport, error) {
	return &models.ConflictReport{Conflicts: []string{}, Valid: true}, nil
}

func (s *timetableServiceStub) AddEntry(ctx context.Context, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if s.editErr != nil {
		return nil, s.editErr
	}
	return &models.TimetableEntry{ID: "e2", Subject: req.Subject, Day: req.Day, TimeSlot: req.Time, Teacher: req.Teacher}, nil
}

func (s *timetableServiceStub) UpdateEntry(ctx context.Context, id string, req dto.TimetableEntryRequest) (*models.TimetableEntry, error) {
	if s.editErr != nil {
		return nil, s.editErr
	}
	return &models.TimetableEntry{ID: id, Subject: req.Subject}, nil
}

func (s *timetableServiceStub) DeleteEntry(ctx context.Context, id string) error {
	return s.editErr
}

func (s *timetableServiceStub) Import(ctx context.Context, actorID string, req dto.ImportTimetableRequest) (*models.ConflictReport, error) {
	s.imported = req
	return &models.ConflictReport{Conflicts: []string{}, Valid: true}, nil
}

func (s *timetableServiceStub) SetFinalized(ctx context.Context, actorID string, value bool) (*models.Timetable, error) {
	s.flagCalls = append(s.flagCalls, "finalized")
	s.tt.Finalized = value
	if !value {
		s.tt.Approved = false
	}
	return s.tt, nil
}

func (s *timetableServiceStub) SetApproved(ctx context.Context, actorID string, value bool) (*models.Timetable, error) {
	s.flagCalls = append(s.flagCalls, "approved")
	if value && !s.tt.Finalized {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable must be finalized before it can be approved")
	}
	s.tt.Approved = value
	return s.tt, nil
}

func newTimetableHandlerForTest() (*TimetableHandler, *timetableServiceStub) {
	svc := newTimetableServiceStub()
	return NewTimetableHandler(svc, service.NewExportService(svc, nil, nil, nil)), svc
}

func TestTimetableHandlerGet(t *testing.T) {
	h, _ := newTimetableHandlerForTest()
	c, w := newTestContext(http.MethodGet, "/timetable", nil, studentClaims)

	h.Get(c)

	assertStatus(t, w, http.StatusOK)
	env := decodeEnvelope(t, w)
	assert.Contains(t, string(env.Data), `"time":"9:00 AM"`)
	assert.EqualValues(t, 1, env.Meta["entries"])
}

func TestTimetableHandlerGenerate(t *testing.T) {
	h, svc := newTimetableHandlerForTest()

	c, w := newTestContext(http.MethodPost, "/timetable/generate", nil, adminClaims)
	h.Generate(c)
	assertStatus(t, w, http.StatusOK)
	assert.Nil(t, svc.generateReq.Preferences)
	assert.EqualValues(t, 1, decodeEnvelope(t, w).Meta["unscheduled"])

	custom := dto.GenerateTimetableRequest{Preferences: &scheduler.Preferences{Faculty: map[string]scheduler.Preference{"f": {Subject: "Math"}}}}
	c, w = newTestContext(http.MethodPost, "/timetable/generate", jsonBody(t, custom), adminClaims)
	h.Generate(c)
	assertStatus(t, w, http.StatusOK)
	require.NotNil(t, svc.generateReq.Preferences)
	assert.Equal(t, "Math", svc.generateReq.Preferences.Faculty["f"].Subject)

	svc.generateErr = appErrors.ErrGenerationInProgress
	c, w = newTestContext(http.MethodPost, "/timetable/generate", nil, adminClaims)
	h.Generate(c)
	assertStatus(t, w, http.StatusConflict)
	assert.Equal(t, "GENERATION_IN_PROGRESS", decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerEntries(t *testing.T) {
	h, svc := newTimetableHandlerForTest()
	entry := dto.TimetableEntryRequest{Subject: "Physics", Day: "Monday", Time: "10:00 AM", Teacher: "Jones"}

	c, w := newTestContext(http.MethodPost, "/timetable/entries", jsonBody(t, entry), adminClaims)
	h.AddEntry(c)
	assertStatus(t, w, http.StatusCreated)

	c, w = newTestContext(http.MethodPut, "/timetable/entries/e1", jsonBody(t, entry), adminClaims)
	c.Params = append(c.Params, ginParam("id", "e1"))
	h.UpdateEntry(c)
	assertStatus(t, w, http.StatusOK)
	assert.Contains(t, string(decodeEnvelope(t, w).Data), `"id":"e1"`)

	c, w = newTestContext(http.MethodDelete, "/timetable/entries/e1", nil, adminClaims)
	h.DeleteEntry(c)
	assertStatus(t, w, http.StatusNoContent)

	svc.editErr = appErrors.Clone(appErrors.ErrConflict, "Teacher conflict: Jones has two classes at 10:00 AM on Monday")
	c, w = newTestContext(http.MethodPost, "/timetable/entries", jsonBody(t, entry), adminClaims)
	h.AddEntry(c)
	assertStatus(t, w, http.StatusConflict)
}

func TestTimetableHandlerImportJSONAndCSV(t *testing.T) {
	h, svc := newTimetableHandlerForTest()

	payload := dto.ImportTimetableRequest{Entries: []dto.ImportEntryRequest{{Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Smith"}}}
	c, w := newTestContext(http.MethodPost, "/timetable/import", jsonBody(t, payload), adminClaims)
	h.Import(c)
	assertStatus(t, w, http.StatusOK)
	require.Len(t, svc.imported.Entries, 1)

	csvBody := "subject,day,time,teacher,room\nArt,Tuesday,1:00 PM,Lee,Studio\nMusic,Friday,2:00 PM,Kim,\n"
	c, w = newTestContext(http.MethodPost, "/timetable/import", strings.NewReader(csvBody), adminClaims)
	c.Request.Header.Set("Content-Type", "text/csv")
	h.Import(c)
	assertStatus(t, w, http.StatusOK)
	require.Len(t, svc.imported.Entries, 2)
	assert.Equal(t, "Studio", svc.imported.Entries[0].Room)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "timetable.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("subject,day,time,teacher\nChem,Wednesday,11:00 AM,Curie\n"))
	require.NoError(t, mw.Close())
	c, w = newTestContext(http.MethodPost, "/timetable/import", &buf, adminClaims)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	h.Import(c)
	assertStatus(t, w, http.StatusOK)
	require.Len(t, svc.imported.Entries, 1)
	assert.Equal(t, "Chem", svc.imported.Entries[0].Subject)

	c, w = newTestContext(http.MethodPost, "/timetable/import", strings.NewReader("subject\nMath\n"), adminClaims)
	c.Request.Header.Set("Content-Type", "text/csv")
	h.Import(c)
	assertStatus(t, w, http.StatusBadRequest)
}

func TestTimetableHandlerExport(t *testing.T) {
	h, _ := newTimetableHandlerForTest()

	c, w := newTestContext(http.MethodGet, "/timetable/export?format=CSV", nil, studentClaims)
	h.Export(c)
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"timetable_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "subject,day,time,teacher,room"))

	c, w = newTestContext(http.MethodGet, "/timetable/export?format=docx", nil, studentClaims)
	h.Export(c)
	assertStatus(t, w, http.StatusBadRequest)
}

func TestTimetableHandlerWorkflow(t *testing.T) {
	h, svc := newTimetableHandlerForTest()

	c, w := newTestContext(http.MethodPost, "/timetable/approve", nil, adminClaims)
	h.Approve(c)
	assertStatus(t, w, http.StatusPreconditionFailed)

	c, w = newTestContext(http.MethodPost, "/timetable/finalize", nil, adminClaims)
	h.Finalize(c)
	assertStatus(t, w, http.StatusOK)

	c, w = newTestContext(http.MethodPost, "/timetable/approve", nil, adminClaims)
	h.Approve(c)
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"finalized":true,"approved":true}`, string(decodeEnvelope(t, w).Data))

	c, w = newTestContext(http.MethodPost, "/timetable/unfinalize", nil, adminClaims)
	h.Unfinalize(c)
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"finalized":false,"approved":false}`, string(decodeEnvelope(t, w).Data))

	c, w = newTestContext(http.MethodPost, "/timetable/unapprove", nil, adminClaims)
	h.Unapprove(c)
	assertStatus(t, w, http.StatusOK)
	assert.Equal(t, []string{"approved", "finalized", "approved", "finalized", "approved"}, svc.flagCalls)
}
