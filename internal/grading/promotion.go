package grading

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// MeetsAllRequirements is the single reason given for an eligible student.
const MeetsAllRequirements = "Meets all requirements"

// PromotionDecision is the verdict of EvaluatePromotion.
type PromotionDecision struct {
	Eligible bool     `json:"is_eligible"`
	Reasons  []string `json:"reasons"`
}

// Remarks joins the reasons for storage on the term report.
func (d PromotionDecision) Remarks() string {
	if len(d.Reasons) == 0 {
		return MeetsAllRequirements
	}
	return strings.Join(d.Reasons, "; ")
}

// EvaluatePromotion applies the grading system's promotion rules to a term report.
// coreGrades are the student's core subject grades for the term; ungraded rows are ignored.
func EvaluatePromotion(report models.TermReport, system models.GradingSystem, coreGrades []models.SubjectTermGrade) PromotionDecision {
	decision := PromotionDecision{Eligible: true}

	if report.Average < system.MinAverageForPromotion {
		decision.Eligible = false
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("Average (%.1f%%) below required %s%%",
			report.Average, strconv.FormatFloat(system.MinAverageForPromotion, 'f', -1, 64)))
	}

	if system.MinSubjectsToPass > 0 && report.SubjectsPassed < system.MinSubjectsToPass {
		decision.Eligible = false
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("Only passed %d subjects, need at least %d",
			report.SubjectsPassed, system.MinSubjectsToPass))
	}

	if system.RequireCorePass {
		var failed []string
		for _, grade := range coreGrades {
			if grade.TotalScore == nil || grade.IsPassing {
				continue
			}
			name := grade.SubjectName
			if name == "" {
				name = grade.SubjectID
			}
			failed = append(failed, name)
		}
		if len(failed) > 0 {
			sort.Strings(failed)
			decision.Eligible = false
			decision.Reasons = append(decision.Reasons, "Failed core subjects: "+strings.Join(failed, ", "))
		}
	}

	if decision.Eligible {
		decision.Reasons = []string{MeetsAllRequirements}
	}
	return decision
}
