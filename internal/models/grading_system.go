package models

import "time"

// SchoolLevel identifies which grading system family applies to a class.
type SchoolLevel string

const (
	// SchoolLevelBasic covers primary and junior high classes.
	SchoolLevelBasic SchoolLevel = "BASIC"
	// SchoolLevelSHS covers senior high classes, ranked by WASSCE-style aggregate.
	SchoolLevelSHS SchoolLevel = "SHS"
)

// GradingSystem is a named rule set for grading, aggregates and promotion.
type GradingSystem struct {
	ID                     string       `db:"id" json:"id"`
	Name                   string       `db:"name" json:"name"`
	Level                  SchoolLevel  `db:"level" json:"level"`
	PassMark               float64      `db:"pass_mark" json:"pass_mark"`
	CreditMark             float64      `db:"credit_mark" json:"credit_mark"`
	AggregateSubjectsCount int          `db:"aggregate_subjects_count" json:"aggregate_subjects_count"`
	MinSubjectsToPass      int          `db:"min_subjects_to_pass" json:"min_subjects_to_pass"`
	MinAverageForPromotion float64      `db:"min_average_for_promotion" json:"min_average_for_promotion"`
	RequireCorePass        bool         `db:"require_core_pass" json:"require_core_pass"`
	IsActive               bool         `db:"is_active" json:"is_active"`
	CreatedAt              time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time    `db:"updated_at" json:"updated_at"`
	Scales                 []GradeScale `json:"scales,omitempty"`
}

// GradeScale is one percentage band of a grading system.
type GradeScale struct {
	ID              string  `db:"id" json:"id"`
	GradingSystemID string  `db:"grading_system_id" json:"grading_system_id"`
	GradeLabel      string  `db:"grade_label" json:"grade_label"`
	MinPercentage   float64 `db:"min_percentage" json:"min_percentage"`
	MaxPercentage   float64 `db:"max_percentage" json:"max_percentage"`
	AggregatePoints *int    `db:"aggregate_points" json:"aggregate_points,omitempty"`
	Interpretation  string  `db:"interpretation" json:"interpretation"`
	IsPass          bool    `db:"is_pass" json:"is_pass"`
	IsCredit        bool    `db:"is_credit" json:"is_credit"`
	Order           int     `db:"display_order" json:"order"`
}
