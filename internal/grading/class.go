package grading

import "github.com/noah-isme/sma-grading-engine/internal/models"

// ClassInput is the prefetched state needed to grade a whole class for a term.
type ClassInput struct {
	TermID      string
	System      models.GradingSystem
	Students    []models.Student
	Subjects    []models.Subject
	Enrollments []models.SubjectEnrollment
	Categories  []models.AssessmentCategory
	Assignments []models.Assignment
	Scores      []models.Score
	Policy      AggregatePolicy
	// EvaluatePromotion is set for the final term of the academic year.
	EvaluatePromotion bool
}

// ClassResult holds every derived row for the class plus collected warnings.
type ClassResult struct {
	Grades   []models.SubjectTermGrade
	Reports  []models.TermReport
	Warnings []Warning
}

// SubjectInputFor assembles a SubjectInput from prefetched indexes.
func SubjectInputFor(studentID, subjectID, termID string, categories []models.AssessmentCategory, assignments AssignmentIndex, scores ScoreIndex, scales Scales) SubjectInput {
	return SubjectInput{
		StudentID:   studentID,
		SubjectID:   subjectID,
		TermID:      termID,
		Categories:  categories,
		Assignments: assignments[subjectID],
		Scores:      scores[studentID],
		Scales:      scales,
	}
}

// EffectiveSubjects resolves the subjects each student takes. When any elective
// enrollment exists for the class, students take only their enrolled subjects;
// otherwise every student takes every class subject.
func EffectiveSubjects(students []models.Student, subjects []models.Subject, enrollments []models.SubjectEnrollment) map[string][]models.Subject {
	result := make(map[string][]models.Subject, len(students))
	if len(enrollments) == 0 {
		for _, student := range students {
			result[student.ID] = subjects
		}
		return result
	}

	enrolled := make(map[string]map[string]struct{}, len(students))
	for _, enrollment := range enrollments {
		set, ok := enrolled[enrollment.StudentID]
		if !ok {
			set = make(map[string]struct{})
			enrolled[enrollment.StudentID] = set
		}
		set[enrollment.SubjectID] = struct{}{}
	}
	for _, student := range students {
		set := enrolled[student.ID]
		list := make([]models.Subject, 0, len(set))
		for _, subject := range subjects {
			if _, ok := set[subject.ID]; ok {
				list = append(list, subject)
			}
		}
		result[student.ID] = list
	}
	return result
}

// WarningsFrom splits a joined validation error into one warning per problem.
func WarningsFrom(err error) []Warning {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	warnings := make([]Warning, 0, len(errs))
	for _, e := range errs {
		warnings = append(warnings, Warning{Message: e.Error()})
	}
	return warnings
}

// ComputeClass runs the full pipeline for a class: subject grades, subject ranks,
// term summaries, aggregates, promotion (final term only) and overall ranks.
func ComputeClass(in ClassInput) ClassResult {
	result := ClassResult{Warnings: WarningsFrom(ValidateScales(in.System.Scales))}
	if err := ValidateCategories(in.Categories); err != nil {
		result.Warnings = append(result.Warnings, Warning{Message: err.Error()})
	}

	scales := NewScales(in.System.Scales)
	assignments := IndexAssignments(in.Assignments)
	scores := IndexScores(in.Scores)
	taken := EffectiveSubjects(in.Students, in.Subjects, in.Enrollments)

	grades := make([]*models.SubjectTermGrade, 0, len(in.Students)*len(in.Subjects))
	byStudent := make(map[string][]*models.SubjectTermGrade, len(in.Students))
	bySubject := make(map[string][]*models.SubjectTermGrade, len(in.Subjects))
	for _, student := range in.Students {
		for _, subject := range taken[student.ID] {
			computed := ComputeSubjectGrade(SubjectInputFor(student.ID, subject.ID, in.TermID, in.Categories, assignments, scores, scales))
			if len(computed.Warnings) > 0 {
				result.Warnings = append(result.Warnings, computed.Warnings...)
			}
			grade := computed.Grade
			grade.SubjectName = subject.Name
			grade.IsCore = subject.IsCore
			grades = append(grades, &grade)
			byStudent[student.ID] = append(byStudent[student.ID], &grade)
			bySubject[subject.ID] = append(bySubject[subject.ID], &grade)
		}
	}

	for _, subject := range in.Subjects {
		RankSubject(bySubject[subject.ID])
	}

	outOf := len(in.Students)
	reports := make([]*models.TermReport, 0, len(in.Students))
	for _, student := range in.Students {
		rows := derefGrades(byStudent[student.ID])
		report := SummarizeTerm(student.ID, in.TermID, rows)
		report.Aggregate = AggregateForGrades(rows, in.System.AggregateSubjectsCount, in.Policy)
		size := outOf
		report.OutOf = &size

		if in.EvaluatePromotion {
			decision := EvaluatePromotion(report, in.System, CoreGrades(rows))
			eligible := decision.Eligible
			report.Promoted = &eligible
			report.PromotionRemarks = decision.Remarks()
		}
		reports = append(reports, &report)
	}

	RankOverall(reports, in.System.Level)

	result.Grades = derefGrades(grades)
	result.Reports = make([]models.TermReport, 0, len(reports))
	for _, report := range reports {
		result.Reports = append(result.Reports, *report)
	}
	return result
}

// CoreGrades filters grades to core subjects.
func CoreGrades(grades []models.SubjectTermGrade) []models.SubjectTermGrade {
	core := make([]models.SubjectTermGrade, 0, len(grades))
	for _, grade := range grades {
		if grade.IsCore {
			core = append(core, grade)
		}
	}
	return core
}

func derefGrades(ptrs []*models.SubjectTermGrade) []models.SubjectTermGrade {
	out := make([]models.SubjectTermGrade, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}
