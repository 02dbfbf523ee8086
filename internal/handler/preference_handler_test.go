package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type preferenceServiceStub struct {
	kind        scheduler.SubmitterType
	submitterID string
	submitErr   error
	prefs       scheduler.Preferences
}

func (s *preferenceServiceStub) Submit(ctx context.Context, kind scheduler.SubmitterType, submitterID string, req dto.SubmitPreferenceRequest) (*models.StoredPreference, error) {
	s.kind, s.submitterID = kind, submitterID
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &models.StoredPreference{SubmitterType: kind, SubmitterID: submitterID, Subject: req.Subject}, nil
}

func (s *preferenceServiceStub) All(ctx context.Context) (scheduler.Preferences, error) {
	return s.prefs, nil
}

func (s *preferenceServiceStub) Clear(ctx context.Context) (int64, error) {
	return 3, nil
}

func TestPreferenceHandlerSubmitUsesCallerIdentity(t *testing.T) {
	svc := &preferenceServiceStub{}
	h := NewPreferenceHandler(svc)
	body := dto.SubmitPreferenceRequest{Subject: "Math", Day: "Monday", Time: "9:00 AM", Teacher: "Dr. Smith"}

	c, w := newTestContext(http.MethodPost, "/preferences/faculty", jsonBody(t, body), facultyClaims)
	h.SubmitFaculty(c)
	assertStatus(t, w, http.StatusCreated)
	assert.Equal(t, scheduler.SubmitterFaculty, svc.kind)
	assert.Equal(t, "fac-1", svc.submitterID)

	c, w = newTestContext(http.MethodPost, "/preferences/student", jsonBody(t, body), studentClaims)
	h.SubmitStudent(c)
	assertStatus(t, w, http.StatusCreated)
	assert.Equal(t, scheduler.SubmitterStudent, svc.kind)
	assert.Equal(t, "stu-1", svc.submitterID)
}

func TestPreferenceHandlerSubmitErrors(t *testing.T) {
	h := NewPreferenceHandler(&preferenceServiceStub{submitErr: appErrors.Clone(appErrors.ErrValidation, "teacher is required for faculty preferences")})

	c, w := newTestContext(http.MethodPost, "/preferences/faculty", jsonBody(t, dto.SubmitPreferenceRequest{Subject: "Math"}), facultyClaims)
	h.SubmitFaculty(c)
	assertStatus(t, w, http.StatusBadRequest)

	c, w = newTestContext(http.MethodPost, "/preferences/faculty", jsonBody(t, dto.SubmitPreferenceRequest{}), nil)
	h.SubmitFaculty(c)
	assertStatus(t, w, http.StatusUnauthorized)
}

func TestPreferenceHandlerListAndClear(t *testing.T) {
	h := NewPreferenceHandler(&preferenceServiceStub{prefs: scheduler.Preferences{
		Faculty: map[string]scheduler.Preference{"f1": {Subject: "Math"}},
		Student: map[string]scheduler.Preference{},
	}})

	c, w := newTestContext(http.MethodGet, "/preferences", nil, adminClaims)
	h.List(c)
	assertStatus(t, w, http.StatusOK)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Meta)
	assert.EqualValues(t, 1, env.Meta["faculty_count"])

	c, w = newTestContext(http.MethodDelete, "/preferences", nil, adminClaims)
	h.Clear(c)
	assertStatus(t, w, http.StatusOK)
	assert.JSONEq(t, `{"removed":3}`, string(decodeEnvelope(t, w).Data))
}
