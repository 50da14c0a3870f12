package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// TermReportRepository persists derived term reports.
type TermReportRepository struct {
	db        *sqlx.DB
	batchSize int
}

// NewTermReportRepository constructs the repository. A non-positive batch size uses DefaultBatchSize.
func NewTermReportRepository(db *sqlx.DB, batchSize int) *TermReportRepository {
	return &TermReportRepository{db: db, batchSize: normaliseBatchSize(batchSize)}
}

// ReportScope selects which term report columns an upsert overwrites.
type ReportScope int

const (
	// ReportScopeSummary writes only the per-student counters.
	ReportScopeSummary ReportScope = iota
	// ReportScopeRanking adds aggregate, position and class size.
	ReportScopeRanking
	// ReportScopePromotion adds the promotion verdict on top of ranking.
	ReportScopePromotion
)

var (
	reportSummaryColumns = []string{
		"total_marks", "average", "subjects_taken", "subjects_passed", "subjects_failed",
		"credits_count", "core_subjects_total", "core_subjects_passed", "updated_at",
	}
	reportRankingColumns   = []string{"aggregate", "position", "out_of"}
	reportPromotionColumns = []string{"promoted", "promotion_remarks"}
)

func termReportUpsertQuery(scope ReportScope) string {
	written := append([]string{}, reportSummaryColumns...)
	if scope >= ReportScopeRanking {
		written = append(written, reportRankingColumns...)
	}
	if scope >= ReportScopePromotion {
		written = append(written, reportPromotionColumns...)
	}
	columns := append([]string{"id", "student_id", "term_id"}, written...)

	updates := make([]string, 0, len(written))
	for _, column := range written {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}

	return fmt.Sprintf(`INSERT INTO term_reports (%s)
VALUES (:%s)
ON CONFLICT (student_id, term_id) DO UPDATE
SET %s`, strings.Join(columns, ", "), strings.Join(columns, ", :"), strings.Join(updates, ",\n    "))
}

// Upsert writes reports in batches, overwriting only the columns in scope.
func (r *TermReportRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, reports []models.TermReport, scope ReportScope) error {
	if len(reports) == 0 {
		return nil
	}
	query := termReportUpsertQuery(scope)
	now := time.Now().UTC()
	for i := range reports {
		if reports[i].ID == "" {
			reports[i].ID = uuid.NewString()
		}
		reports[i].UpdatedAt = now
	}

	target := execOr(r.db, exec)
	for _, batch := range chunk(reports, r.batchSize) {
		if _, err := sqlx.NamedExecContext(ctx, target, query, batch); err != nil {
			return fmt.Errorf("upsert term reports: %w", err)
		}
	}
	return nil
}

// FindByStudentTerm fetches the report for (student, term).
func (r *TermReportRepository) FindByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) (*models.TermReport, error) {
	const query = `SELECT id, student_id, term_id, total_marks, average, subjects_taken, subjects_passed, subjects_failed,
credits_count, core_subjects_total, core_subjects_passed, aggregate, position, out_of, promoted,
COALESCE(promotion_remarks, '') AS promotion_remarks, updated_at
FROM term_reports WHERE student_id = $1 AND term_id = $2`
	var report models.TermReport
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &report, query, studentID, termID); err != nil {
		return nil, err
	}
	return &report, nil
}
