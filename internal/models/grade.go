package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CategoryScore is one category's contribution to a subject total.
type CategoryScore struct {
	CategoryID string  `json:"category_id"`
	ShortName  string  `json:"short_name"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
}

// CategoryScores is the ordered per-category breakdown stored with a subject grade.
type CategoryScores []CategoryScore

// Value marshals the breakdown to JSON for persistence.
func (c CategoryScores) Value() (driver.Value, error) {
	if c == nil {
		c = CategoryScores{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal category scores: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSON breakdown.
func (c *CategoryScores) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CategoryScores", value)
	}
	if len(data) == 0 {
		*c = nil
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal category scores: %w", err)
	}
	return nil
}

// Validate checks a stored breakdown against the active categories.
func (c CategoryScores) Validate(categories []AssessmentCategory) error {
	byID := make(map[string]AssessmentCategory, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}
	var errs []error
	for _, entry := range c {
		category, ok := byID[entry.CategoryID]
		if !ok {
			errs = append(errs, fmt.Errorf("category %s (%s) is not active", entry.CategoryID, entry.ShortName))
			continue
		}
		if entry.Percentage != category.Percentage {
			errs = append(errs, fmt.Errorf("category %s weight changed from %.2f to %.2f", category.ShortName, entry.Percentage, category.Percentage))
		}
		if entry.Score < 0 || entry.Score > entry.Percentage+0.01 {
			errs = append(errs, fmt.Errorf("category %s score %.2f outside 0..%.2f", category.ShortName, entry.Score, entry.Percentage))
		}
	}
	return errors.Join(errs...)
}

// SubjectTermGrade is the derived grade of one student in one subject for a term.
type SubjectTermGrade struct {
	ID              string         `db:"id" json:"id"`
	StudentID       string         `db:"student_id" json:"student_id"`
	SubjectID       string         `db:"subject_id" json:"subject_id"`
	TermID          string         `db:"term_id" json:"term_id"`
	ClassScore      float64        `db:"class_score" json:"class_score"`
	ExamScore       float64        `db:"exam_score" json:"exam_score"`
	TotalScore      *float64       `db:"total_score" json:"total_score,omitempty"`
	CategoryScores  CategoryScores `db:"category_scores" json:"category_scores"`
	Grade           string         `db:"grade" json:"grade"`
	GradeRemark     string         `db:"grade_remark" json:"grade_remark"`
	IsPassing       bool           `db:"is_passing" json:"is_passing"`
	IsCredit        bool           `db:"is_credit" json:"is_credit"`
	AggregatePoints *int           `db:"aggregate_points" json:"aggregate_points,omitempty"`
	Rank            *int           `db:"subject_position" json:"rank,omitempty"`
	TeacherRemark   string         `db:"teacher_remark" json:"teacher_remark,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`

	SubjectName string `db:"subject_name" json:"subject_name,omitempty"`
	IsCore      bool   `db:"is_core" json:"is_core"`
}

// Graded reports whether the grade has a computed total.
func (g SubjectTermGrade) Graded() bool {
	return g.TotalScore != nil
}
