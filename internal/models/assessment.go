package models

import "time"

// CategoryType tags an assessment category for the legacy two-bucket totals.
type CategoryType string

const (
	CategoryTypeClassScore CategoryType = "CLASS_SCORE"
	CategoryTypeExam       CategoryType = "EXAM"
	CategoryTypeOther      CategoryType = "OTHER"
)

// AssessmentCategory is a school-wide weighting bucket such as "Class Score" 30%.
type AssessmentCategory struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	ShortName    string       `db:"short_name" json:"short_name"`
	CategoryType CategoryType `db:"category_type" json:"category_type"`
	Percentage   float64      `db:"percentage" json:"percentage"`
	Order        int          `db:"display_order" json:"order"`
	IsActive     bool         `db:"is_active" json:"is_active"`
}

// Assignment is a graded activity for one subject and term.
type Assignment struct {
	ID         string  `db:"id" json:"id"`
	CategoryID string  `db:"category_id" json:"category_id"`
	SubjectID  string  `db:"subject_id" json:"subject_id"`
	TermID     string  `db:"term_id" json:"term_id"`
	Name       string  `db:"name" json:"name"`
	MaxPoints  float64 `db:"max_points" json:"max_points"`
}

// Score stores a student's points on one assignment.
type Score struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	Points       float64   `db:"points" json:"points"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AuditAction names the kind of score mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// ScoreAuditLog records every change to a score.
type ScoreAuditLog struct {
	ID           string      `db:"id" json:"id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	AssignmentID string      `db:"assignment_id" json:"assignment_id"`
	Action       AuditAction `db:"action" json:"action"`
	OldValue     *float64    `db:"old_value" json:"old_value,omitempty"`
	NewValue     *float64    `db:"new_value" json:"new_value,omitempty"`
	ActorID      *string     `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
