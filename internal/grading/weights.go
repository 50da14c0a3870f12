// Package grading holds the pure grade computation pipeline shared by the
// incremental and bulk recalculation paths. Nothing in this package performs I/O.
package grading

import (
	"fmt"
	"math"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// roundingBias absorbs binary representation error so that values such as
// 2.675 round up the way a decimal implementation would.
const roundingBias = 1e-7

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100+math.Copysign(roundingBias, v)) / 100
}

// WeightPerAssignment splits a category percentage equally across its assignments.
// A category without assignments carries no weight.
func WeightPerAssignment(percentage float64, assignmentCount int) float64 {
	if assignmentCount <= 0 {
		return 0
	}
	return percentage / float64(assignmentCount)
}

// ValidateCategories reports active category weights that cannot form a 0..100 total.
func ValidateCategories(categories []models.AssessmentCategory) error {
	var sum float64
	for _, category := range categories {
		if category.Percentage < 0 || category.Percentage > 100 {
			return fmt.Errorf("category %s percentage %.2f outside 0..100", category.ShortName, category.Percentage)
		}
		sum += category.Percentage
	}
	if sum > 100+0.01 {
		return fmt.Errorf("active category percentages sum to %.2f, above 100", sum)
	}
	return nil
}
