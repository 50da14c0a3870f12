package models

import "time"

// TermReport summarises a student's term across all subjects.
type TermReport struct {
	ID                 string    `db:"id" json:"id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	TermID             string    `db:"term_id" json:"term_id"`
	TotalMarks         float64   `db:"total_marks" json:"total_marks"`
	Average            float64   `db:"average" json:"average"`
	SubjectsTaken      int       `db:"subjects_taken" json:"subjects_taken"`
	SubjectsPassed     int       `db:"subjects_passed" json:"subjects_passed"`
	SubjectsFailed     int       `db:"subjects_failed" json:"subjects_failed"`
	CreditsCount       int       `db:"credits_count" json:"credits_count"`
	CoreSubjectsTotal  int       `db:"core_subjects_total" json:"core_subjects_total"`
	CoreSubjectsPassed int       `db:"core_subjects_passed" json:"core_subjects_passed"`
	Aggregate          *int      `db:"aggregate" json:"aggregate,omitempty"`
	Rank               *int      `db:"position" json:"rank,omitempty"`
	OutOf              *int      `db:"out_of" json:"out_of,omitempty"`
	Promoted           *bool     `db:"promoted" json:"promoted,omitempty"`
	PromotionRemarks   string    `db:"promotion_remarks" json:"promotion_remarks,omitempty"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
