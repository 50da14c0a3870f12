package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// DirectoryRepository reads students, classes, subjects and elective enrollments.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindStudent fetches a student by id.
func (r *DirectoryRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT id, full_name, active, current_class_id FROM students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindClass fetches a class by id.
func (r *DirectoryRepository) FindClass(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, `SELECT id, name, level FROM classes WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindSubject fetches a subject by id.
func (r *DirectoryRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, `SELECT id, code, name, is_core FROM subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListActiveStudents returns active students currently placed in the class.
func (r *DirectoryRepository) ListActiveStudents(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT id, full_name, active, current_class_id FROM students
WHERE current_class_id = $1 AND active = TRUE ORDER BY full_name ASC, id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// ListClassSubjects returns the subjects assigned to a class.
func (r *DirectoryRepository) ListClassSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	const query = `SELECT s.id, s.code, s.name, s.is_core FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1 ORDER BY s.name ASC, s.id ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// ListEnrollments returns active elective enrollments for students of a class.
func (r *DirectoryRepository) ListEnrollments(ctx context.Context, classID string) ([]models.SubjectEnrollment, error) {
	const query = `SELECT se.student_id, cs.subject_id FROM student_subject_enrollments se
JOIN class_subjects cs ON cs.id = se.class_subject_id
WHERE cs.class_id = $1 AND se.is_active = TRUE`
	var enrollments []models.SubjectEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list subject enrollments: %w", err)
	}
	return enrollments, nil
}
