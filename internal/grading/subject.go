package grading

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// Warning is a non-fatal configuration problem found while computing grades.
type Warning struct {
	StudentID string `json:"student_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Message   string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.StudentID != "" && w.SubjectID != "":
		return fmt.Sprintf("student %s subject %s: %s", w.StudentID, w.SubjectID, w.Message)
	case w.SubjectID != "":
		return fmt.Sprintf("subject %s: %s", w.SubjectID, w.Message)
	default:
		return w.Message
	}
}

// AssignmentIndex groups assignments by subject then category.
type AssignmentIndex map[string]map[string][]models.Assignment

// IndexAssignments builds the (subject, category) lookup. Assignments are kept
// in ID order so every caller sums contributions in the same sequence.
func IndexAssignments(assignments []models.Assignment) AssignmentIndex {
	sorted := make([]models.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(AssignmentIndex)
	for _, assignment := range sorted {
		byCategory, ok := index[assignment.SubjectID]
		if !ok {
			byCategory = make(map[string][]models.Assignment)
			index[assignment.SubjectID] = byCategory
		}
		byCategory[assignment.CategoryID] = append(byCategory[assignment.CategoryID], assignment)
	}
	return index
}

// ScoreIndex maps student then assignment to points earned.
type ScoreIndex map[string]map[string]float64

// IndexScores builds the (student, assignment) lookup.
func IndexScores(scores []models.Score) ScoreIndex {
	index := make(ScoreIndex)
	for _, score := range scores {
		byAssignment, ok := index[score.StudentID]
		if !ok {
			byAssignment = make(map[string]float64)
			index[score.StudentID] = byAssignment
		}
		byAssignment[score.AssignmentID] = score.Points
	}
	return index
}

// SubjectInput is everything needed to grade one student in one subject.
type SubjectInput struct {
	StudentID  string
	SubjectID  string
	TermID     string
	Categories []models.AssessmentCategory
	// Assignments for the subject and term keyed by category ID.
	Assignments map[string][]models.Assignment
	// Scores for the student keyed by assignment ID.
	Scores map[string]float64
	Scales Scales
}

// SubjectResult carries the computed grade and any configuration warnings.
type SubjectResult struct {
	Grade    models.SubjectTermGrade
	Warnings []Warning
}

// ComputeSubjectGrade sums weighted assignment scores into a subject total and matches it to a band.
func ComputeSubjectGrade(in SubjectInput) SubjectResult {
	grade := models.SubjectTermGrade{
		StudentID:      in.StudentID,
		SubjectID:      in.SubjectID,
		TermID:         in.TermID,
		CategoryScores: models.CategoryScores{},
	}

	var (
		total       float64
		classScore  float64
		examScore   float64
		assignments int
		warnings    []Warning
	)
	for _, category := range in.Categories {
		list := in.Assignments[category.ID]
		if len(list) == 0 {
			continue
		}
		assignments += len(list)
		weight := WeightPerAssignment(category.Percentage, len(list))

		var categoryTotal float64
		for _, assignment := range list {
			if assignment.MaxPoints <= 0 {
				warnings = append(warnings, Warning{
					StudentID: in.StudentID,
					SubjectID: in.SubjectID,
					Message:   fmt.Sprintf("assignment %s has non-positive max points %.2f", assignment.ID, assignment.MaxPoints),
				})
				continue
			}
			points, ok := in.Scores[assignment.ID]
			if !ok {
				continue
			}
			categoryTotal += points / assignment.MaxPoints * weight
		}

		rounded := Round2(categoryTotal)
		grade.CategoryScores = append(grade.CategoryScores, models.CategoryScore{
			CategoryID: category.ID,
			ShortName:  category.ShortName,
			Score:      rounded,
			Percentage: category.Percentage,
		})
		switch category.CategoryType {
		case models.CategoryTypeClassScore:
			classScore += rounded
		case models.CategoryTypeExam:
			examScore += rounded
		}
		total += categoryTotal
	}

	if assignments == 0 {
		return SubjectResult{Grade: grade, Warnings: warnings}
	}

	grade.ClassScore = Round2(classScore)
	grade.ExamScore = Round2(examScore)
	rounded := Round2(total)
	grade.TotalScore = &rounded

	band, ok := in.Scales.Match(rounded)
	if !ok {
		warnings = append(warnings, Warning{
			StudentID: in.StudentID,
			SubjectID: in.SubjectID,
			Message:   fmt.Sprintf("no grade band covers total %.2f", rounded),
		})
		return SubjectResult{Grade: grade, Warnings: warnings}
	}

	grade.Grade = band.GradeLabel
	grade.GradeRemark = band.Interpretation
	grade.IsPassing = band.IsPass
	grade.IsCredit = band.IsCredit
	if band.AggregatePoints != nil {
		points := *band.AggregatePoints
		grade.AggregatePoints = &points
	}
	return SubjectResult{Grade: grade, Warnings: warnings}
}
