package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

type stubRecomputer struct {
	gradeErr  error
	reportErr error
	grades    int
	reports   int
}

func (s *stubRecomputer) RecomputeOne(context.Context, string, string, string) (*models.SubjectTermGrade, error) {
	s.grades++
	if s.gradeErr != nil {
		return nil, s.gradeErr
	}
	return &models.SubjectTermGrade{}, nil
}

func (s *stubRecomputer) RecomputeTermReport(context.Context, string, string) (*models.TermReport, error) {
	s.reports++
	if s.reportErr != nil {
		return nil, s.reportErr
	}
	return &models.TermReport{}, nil
}

func TestRecalcTriggerRunsGradeThenReport(t *testing.T) {
	stub := &stubRecomputer{}
	trigger := NewRecalcTrigger(stub, nil, nil)

	trigger.Handle(context.Background(), RecalcActive, "s1", "math", "term-1")
	assert.Equal(t, 1, stub.grades)
	assert.Equal(t, 1, stub.reports)

	trigger.Handle(context.Background(), RecalcSuppressed, "s1", "math", "term-1")
	assert.Equal(t, 1, stub.grades)
	assert.Equal(t, 1, stub.reports)
	assert.False(t, trigger.HandleReport(context.Background(), RecalcSuppressed, "s1", "term-1"))
}

func TestRecalcTriggerSkipsReportWhenGradeFails(t *testing.T) {
	stub := &stubRecomputer{gradeErr: appErrors.Clone(appErrors.ErrLocked, "grades locked")}
	metrics := NewMetricsService()
	core, logs := observer.New(zapcore.DebugLevel)
	trigger := NewRecalcTrigger(stub, metrics, zap.New(core))

	trigger.Handle(context.Background(), RecalcActive, "s1", "math", "term-1")
	assert.Equal(t, 0, stub.reports)

	entries := logs.FilterMessage("incremental recompute failed: grades locked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "subject grade", fields["stage"])
	assert.Equal(t, "math", fields["subject_id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.incrementalFailures.WithLabelValues("locked")))
}

func TestRecalcTriggerClassifiesFailures(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		level   zapcore.Level
		message string
		reason  string
	}{
		{"precondition", appErrors.Clone(appErrors.ErrPreconditionFailed, "no graded subjects"), zapcore.DebugLevel, "incremental recompute skipped", ""},
		{"configuration", appErrors.Clone(appErrors.ErrConfiguration, "no active grading system"), zapcore.WarnLevel, "incremental recompute failed: grading configuration", "configuration"},
		{"not found", appErrors.Clone(appErrors.ErrNotFound, "term not found"), zapcore.WarnLevel, "incremental recompute failed: missing reference", "not_found"},
		{"internal", errors.New("connection reset"), zapcore.ErrorLevel, "incremental recompute failed", "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubRecomputer{reportErr: tc.err}
			metrics := NewMetricsService()
			core, logs := observer.New(zapcore.DebugLevel)
			trigger := NewRecalcTrigger(stub, metrics, zap.New(core))

			ok := trigger.HandleReport(context.Background(), RecalcActive, "s1", "term-1")
			assert.False(t, ok)

			entries := logs.FilterMessage(tc.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tc.level, entries[0].Level)
			assert.Equal(t, "term report", entries[0].ContextMap()["stage"])
			if tc.reason != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.incrementalFailures.WithLabelValues(tc.reason)))
			} else {
				assert.Equal(t, 0, testutil.CollectAndCount(metrics.incrementalFailures))
			}
		})
	}
}
