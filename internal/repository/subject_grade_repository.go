package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// SubjectGradeRepository persists derived per-subject term grades.
type SubjectGradeRepository struct {
	db        *sqlx.DB
	batchSize int
}

// NewSubjectGradeRepository constructs the repository. A non-positive batch size uses DefaultBatchSize.
func NewSubjectGradeRepository(db *sqlx.DB, batchSize int) *SubjectGradeRepository {
	return &SubjectGradeRepository{db: db, batchSize: normaliseBatchSize(batchSize)}
}

const subjectGradeSelect = `SELECT g.id, g.student_id, g.subject_id, g.term_id, g.class_score, g.exam_score, g.total_score,
g.category_scores, g.grade, g.grade_remark, g.is_passing, g.is_credit, g.aggregate_points, g.subject_position,
COALESCE(g.teacher_remark, '') AS teacher_remark, g.updated_at, s.name AS subject_name, s.is_core
FROM subject_term_grades g
JOIN subjects s ON s.id = g.subject_id`

var subjectGradeComputedColumns = []string{
	"class_score", "exam_score", "total_score", "category_scores", "grade", "grade_remark",
	"is_passing", "is_credit", "aggregate_points", "updated_at",
}

// subjectGradeUpsertQuery never touches teacher_remark. Ranks are only
// overwritten when withRank is set.
func subjectGradeUpsertQuery(withRank bool) string {
	columns := append([]string{"id", "student_id", "subject_id", "term_id"}, subjectGradeComputedColumns...)
	columns = append(columns, "subject_position")

	updates := make([]string, 0, len(subjectGradeComputedColumns)+1)
	for _, column := range subjectGradeComputedColumns {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}
	if withRank {
		updates = append(updates, "subject_position = EXCLUDED.subject_position")
	}

	return fmt.Sprintf(`INSERT INTO subject_term_grades (%s)
VALUES (:%s)
ON CONFLICT (student_id, subject_id, term_id) DO UPDATE
SET %s`, strings.Join(columns, ", "), strings.Join(columns, ", :"), strings.Join(updates, ",\n    "))
}

// Upsert writes computed grades in batches. When withRank is false existing ranks are preserved.
func (r *SubjectGradeRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, grades []models.SubjectTermGrade, withRank bool) error {
	if len(grades) == 0 {
		return nil
	}
	query := subjectGradeUpsertQuery(withRank)
	now := time.Now().UTC()
	for i := range grades {
		if grades[i].ID == "" {
			grades[i].ID = uuid.NewString()
		}
		grades[i].UpdatedAt = now
	}

	target := execOr(r.db, exec)
	for _, batch := range chunk(grades, r.batchSize) {
		if _, err := sqlx.NamedExecContext(ctx, target, query, batch); err != nil {
			return fmt.Errorf("upsert subject grades: %w", err)
		}
	}
	return nil
}

// FindByKey fetches the grade row for (student, subject, term).
func (r *SubjectGradeRepository) FindByKey(ctx context.Context, exec sqlx.ExtContext, studentID, subjectID, termID string) (*models.SubjectTermGrade, error) {
	var grade models.SubjectTermGrade
	query := subjectGradeSelect + ` WHERE g.student_id = $1 AND g.subject_id = $2 AND g.term_id = $3`
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &grade, query, studentID, subjectID, termID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// ListByStudentTerm returns every grade of a student in a term, ordered by subject name.
func (r *SubjectGradeRepository) ListByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) ([]models.SubjectTermGrade, error) {
	var grades []models.SubjectTermGrade
	query := subjectGradeSelect + ` WHERE g.student_id = $1 AND g.term_id = $2 ORDER BY s.name ASC, g.subject_id ASC`
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &grades, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list student subject grades: %w", err)
	}
	return grades, nil
}

// ListBySubjectTerm returns the grades of the given students in one subject and term.
func (r *SubjectGradeRepository) ListBySubjectTerm(ctx context.Context, exec sqlx.ExtContext, subjectID, termID string, studentIDs []string) ([]models.SubjectTermGrade, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var grades []models.SubjectTermGrade
	query := subjectGradeSelect + ` WHERE g.subject_id = $1 AND g.term_id = $2 AND g.student_id = ANY($3) ORDER BY g.student_id ASC`
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &grades, query, subjectID, termID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list subject grades: %w", err)
	}
	return grades, nil
}

// UpdateRanks writes subject positions for existing rows.
func (r *SubjectGradeRepository) UpdateRanks(ctx context.Context, exec sqlx.ExtContext, grades []models.SubjectTermGrade) error {
	target := execOr(r.db, exec)
	for _, grade := range grades {
		if _, err := target.ExecContext(ctx, `UPDATE subject_term_grades SET subject_position = $1 WHERE id = $2`, grade.Rank, grade.ID); err != nil {
			return fmt.Errorf("update subject rank: %w", err)
		}
	}
	return nil
}

// DeleteStale removes the term rows of the given students whose subject is not
// among keep. Rows for students outside studentIDs are left alone.
func (r *SubjectGradeRepository) DeleteStale(ctx context.Context, exec sqlx.ExtContext, termID string, studentIDs []string, keep []models.SubjectTermGrade) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	keepStudents := make([]string, 0, len(keep))
	keepSubjects := make([]string, 0, len(keep))
	for _, grade := range keep {
		keepStudents = append(keepStudents, grade.StudentID)
		keepSubjects = append(keepSubjects, grade.SubjectID)
	}

	query := `DELETE FROM subject_term_grades
WHERE term_id = $1 AND student_id = ANY($2)
AND (student_id, subject_id) NOT IN (SELECT k.student_id, k.subject_id FROM unnest($3::text[], $4::text[]) AS k(student_id, subject_id))`
	res, err := execOr(r.db, exec).ExecContext(ctx, query, termID, pq.Array(studentIDs), pq.Array(keepStudents), pq.Array(keepSubjects))
	if err != nil {
		return 0, fmt.Errorf("delete stale subject grades: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale subject grades: %w", err)
	}
	return deleted, nil
}
