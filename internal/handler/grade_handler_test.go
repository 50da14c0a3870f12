package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

type gradeServiceMock struct {
	grade       *models.SubjectTermGrade
	report      *models.TermReport
	warnings    []grading.Warning
	err         error
	lastRequest service.RecomputeGradeRequest
}

func (m *gradeServiceMock) Find(ctx context.Context, req service.RecomputeGradeRequest) (*models.SubjectTermGrade, []grading.Warning, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.grade, m.warnings, nil
}

func (m *gradeServiceMock) Recompute(ctx context.Context, req service.RecomputeGradeRequest) (*models.SubjectTermGrade, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return m.grade, nil
}

func (m *gradeServiceMock) RecomputeReport(ctx context.Context, req service.RecomputeReportRequest) (*models.TermReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body []byte
	switch v := payload.(type) {
	case string:
		body = []byte(v)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGradeHandlerRecompute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	total := 63.75
	mock := &gradeServiceMock{grade: &models.SubjectTermGrade{StudentID: "s1", SubjectID: "math", TotalScore: &total, Grade: "B3"}}
	handler := NewGradeHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/grades/recompute", service.RecomputeGradeRequest{StudentID: "s1", SubjectID: "math", TermID: "term-1"})

	handler.Recompute(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term-1", mock.lastRequest.TermID)

	var grade models.SubjectTermGrade
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &grade))
	assert.Equal(t, "B3", grade.Grade)
	assert.Equal(t, 63.75, *grade.TotalScore)
}

func TestGradeHandlerRecomputeInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradeHandler(&gradeServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/grades/recompute", "invalid")

	handler.Recompute(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestGradeHandlerMapsLockedError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradeHandler(&gradeServiceMock{err: appErrors.Clone(appErrors.ErrLocked, "grades for Term 1 2025/2026 are locked")})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/term-reports/recompute", service.RecomputeReportRequest{StudentID: "s1", TermID: "term-1"})

	handler.RecomputeReport(c)
	require.Equal(t, http.StatusLocked, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "GRADES_LOCKED", env.Error.Code)
	assert.Equal(t, "grades for Term 1 2025/2026 are locked", env.Error.Message)
}

func TestGradeHandlerGetRendersWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &gradeServiceMock{
		grade:    &models.SubjectTermGrade{StudentID: "s1", SubjectID: "math"},
		warnings: []grading.Warning{{StudentID: "s1", SubjectID: "math", Message: "category project (PRJ) is not active"}},
	}
	handler := NewGradeHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/grades?student_id=s1&subject_id=math&term_id=term-1", nil)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.RecomputeGradeRequest{StudentID: "s1", SubjectID: "math", TermID: "term-1"}, mock.lastRequest)
	env := decodeEnvelope(t, w)
	require.Contains(t, env.Meta, "warnings")
	assert.Len(t, env.Meta["warnings"], 1)
}
