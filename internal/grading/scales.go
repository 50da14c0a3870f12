package grading

import (
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// Scales is a grading system's band list ordered by min percentage, highest first.
type Scales []models.GradeScale

// NewScales copies and orders bands for matching.
func NewScales(bands []models.GradeScale) Scales {
	scales := make(Scales, len(bands))
	copy(scales, bands)
	sort.SliceStable(scales, func(i, j int) bool {
		return scales[i].MinPercentage > scales[j].MinPercentage
	})
	return scales
}

// Match returns the first band containing total, inclusive on both ends.
func (s Scales) Match(total float64) (models.GradeScale, bool) {
	for _, band := range s {
		if band.MinPercentage <= total && total <= band.MaxPercentage {
			return band, true
		}
	}
	return models.GradeScale{}, false
}

// ValidateScales reports inverted bands, overlapping bands and aggregate points outside 1..9.
func ValidateScales(bands []models.GradeScale) error {
	var errs []error
	for _, band := range bands {
		if band.MinPercentage > band.MaxPercentage {
			errs = append(errs, fmt.Errorf("grade %s: min %.2f above max %.2f", band.GradeLabel, band.MinPercentage, band.MaxPercentage))
		}
		if band.AggregatePoints != nil && (*band.AggregatePoints < 1 || *band.AggregatePoints > 9) {
			errs = append(errs, fmt.Errorf("grade %s: aggregate points %d outside 1..9", band.GradeLabel, *band.AggregatePoints))
		}
	}

	ascending := make([]models.GradeScale, len(bands))
	copy(ascending, bands)
	sort.SliceStable(ascending, func(i, j int) bool {
		return ascending[i].MinPercentage < ascending[j].MinPercentage
	})
	for i := 1; i < len(ascending); i++ {
		prev, curr := ascending[i-1], ascending[i]
		if curr.MinPercentage <= prev.MaxPercentage {
			errs = append(errs, fmt.Errorf("grades %s and %s overlap at %.2f", prev.GradeLabel, curr.GradeLabel, curr.MinPercentage))
		}
	}
	return errors.Join(errs...)
}
