package grading

import (
	"sort"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// DefaultAggregateSubjects is used when a grading system leaves the best-N count unset.
const DefaultAggregateSubjects = 6

// AggregatePolicy decides how a student with fewer than N graded subjects is aggregated.
type AggregatePolicy string

const (
	// AggregatePartial sums whatever graded subjects exist.
	AggregatePartial AggregatePolicy = "partial"
	// AggregateStrict leaves the aggregate empty until N subjects are graded.
	AggregateStrict AggregatePolicy = "strict"
)

// competitionRanks assigns 1-based ranks to an already sorted slice. An item
// equal to its predecessor shares its rank; otherwise its rank is its position.
func competitionRanks(n int, equal func(i, j int) bool) []int {
	ranks := make([]int, n)
	for i := 0; i < n; i++ {
		if i > 0 && equal(i-1, i) {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}

// RankSubject assigns competition ranks to the graded rows of one subject in place.
// Rows without a total are left unranked.
func RankSubject(grades []*models.SubjectTermGrade) {
	graded := make([]*models.SubjectTermGrade, 0, len(grades))
	for _, grade := range grades {
		if grade.TotalScore == nil {
			grade.Rank = nil
			continue
		}
		graded = append(graded, grade)
	}

	sort.SliceStable(graded, func(i, j int) bool {
		a, b := *graded[i].TotalScore, *graded[j].TotalScore
		if a != b {
			return a > b
		}
		return graded[i].StudentID < graded[j].StudentID
	})

	ranks := competitionRanks(len(graded), func(i, j int) bool {
		return *graded[i].TotalScore == *graded[j].TotalScore
	})
	for i, grade := range graded {
		rank := ranks[i]
		grade.Rank = &rank
	}
}

// SelectBestN sorts points ascending and sums the lowest n.
func SelectBestN(points []int, n int) int {
	sorted := make([]int, len(points))
	copy(sorted, points)
	sort.Ints(sorted)
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	sum := 0
	for _, p := range sorted {
		sum += p
	}
	return sum
}

// AggregateForGrades computes the best-N aggregate over graded subjects that carry aggregate points.
// It returns nil when no subject has points, or under the strict policy when fewer than n do.
func AggregateForGrades(grades []models.SubjectTermGrade, n int, policy AggregatePolicy) *int {
	if n <= 0 {
		n = DefaultAggregateSubjects
	}
	points := make([]int, 0, len(grades))
	for _, grade := range grades {
		if grade.TotalScore == nil || grade.AggregatePoints == nil {
			continue
		}
		points = append(points, *grade.AggregatePoints)
	}
	if len(points) == 0 {
		return nil
	}
	if policy == AggregateStrict && len(points) < n {
		return nil
	}
	aggregate := SelectBestN(points, n)
	return &aggregate
}

// RankOverall assigns class positions to term reports in place. SHS reports are
// ordered by aggregate ascending with missing aggregates last, then by average;
// other levels are ordered by average descending.
func RankOverall(reports []*models.TermReport, level models.SchoolLevel) {
	ordered := make([]*models.TermReport, len(reports))
	copy(ordered, reports)

	if level == models.SchoolLevelSHS {
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if (a.Aggregate == nil) != (b.Aggregate == nil) {
				return a.Aggregate != nil
			}
			if a.Aggregate != nil && *a.Aggregate != *b.Aggregate {
				return *a.Aggregate < *b.Aggregate
			}
			if a.Average != b.Average {
				return a.Average > b.Average
			}
			return a.StudentID < b.StudentID
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Average != ordered[j].Average {
				return ordered[i].Average > ordered[j].Average
			}
			return ordered[i].StudentID < ordered[j].StudentID
		})
	}

	ranks := competitionRanks(len(ordered), func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if level != models.SchoolLevelSHS {
			return a.Average == b.Average
		}
		if a.Aggregate == nil || b.Aggregate == nil {
			return a.Aggregate == nil && b.Aggregate == nil
		}
		return *a.Aggregate == *b.Aggregate
	})
	for i, report := range ordered {
		rank := ranks[i]
		report.Rank = &rank
	}
}
