package grading

import "github.com/noah-isme/sma-grading-engine/internal/models"

// SummarizeTerm folds a student's graded subjects into the term report counters.
// Ungraded rows are ignored. Rank, aggregate and promotion fields are left unset.
func SummarizeTerm(studentID, termID string, grades []models.SubjectTermGrade) models.TermReport {
	report := models.TermReport{StudentID: studentID, TermID: termID}

	var total float64
	for _, grade := range grades {
		if grade.TotalScore == nil {
			continue
		}
		total += *grade.TotalScore
		report.SubjectsTaken++
		if grade.IsPassing {
			report.SubjectsPassed++
		}
		if grade.IsCredit {
			report.CreditsCount++
		}
		if grade.IsCore {
			report.CoreSubjectsTotal++
			if grade.IsPassing {
				report.CoreSubjectsPassed++
			}
		}
	}

	report.SubjectsFailed = report.SubjectsTaken - report.SubjectsPassed
	report.TotalMarks = Round2(total)
	if report.SubjectsTaken > 0 {
		report.Average = Round2(total / float64(report.SubjectsTaken))
	}
	return report
}
