package models

import "time"

// Term models an academic term and its grade lock state.
type Term struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	AcademicYear   string     `db:"academic_year" json:"academic_year"`
	TermNumber     int        `db:"term_number" json:"term_number"`
	IsCurrent      bool       `db:"is_current" json:"is_current"`
	GradesLocked   bool       `db:"grades_locked" json:"grades_locked"`
	GradesLockedAt *time.Time `db:"grades_locked_at" json:"grades_locked_at,omitempty"`
	GradesLockedBy *string    `db:"grades_locked_by" json:"grades_locked_by,omitempty"`
}
