package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// GradingConfigRepository reads grading systems, grade scales and assessment categories.
type GradingConfigRepository struct {
	db *sqlx.DB
}

// NewGradingConfigRepository constructs the repository.
func NewGradingConfigRepository(db *sqlx.DB) *GradingConfigRepository {
	return &GradingConfigRepository{db: db}
}

const gradingSystemColumns = `id, name, level, pass_mark, credit_mark, aggregate_subjects_count, min_subjects_to_pass,
min_average_for_promotion, require_core_pass, is_active, created_at, updated_at`

// FindSystemByID fetches a grading system with its scales.
func (r *GradingConfigRepository) FindSystemByID(ctx context.Context, id string) (*models.GradingSystem, error) {
	var system models.GradingSystem
	if err := r.db.GetContext(ctx, &system, `SELECT `+gradingSystemColumns+` FROM grading_systems WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return r.withScales(ctx, &system)
}

// FindActiveByLevel returns the first active grading system for a school level.
func (r *GradingConfigRepository) FindActiveByLevel(ctx context.Context, level models.SchoolLevel) (*models.GradingSystem, error) {
	const query = `SELECT ` + gradingSystemColumns + ` FROM grading_systems
WHERE level = $1 AND is_active = TRUE ORDER BY created_at ASC, id ASC LIMIT 1`
	var system models.GradingSystem
	if err := r.db.GetContext(ctx, &system, query, level); err != nil {
		return nil, err
	}
	return r.withScales(ctx, &system)
}

// FindAnyActive returns the oldest active grading system regardless of level.
func (r *GradingConfigRepository) FindAnyActive(ctx context.Context) (*models.GradingSystem, error) {
	const query = `SELECT ` + gradingSystemColumns + ` FROM grading_systems
WHERE is_active = TRUE ORDER BY created_at ASC, id ASC LIMIT 1`
	var system models.GradingSystem
	if err := r.db.GetContext(ctx, &system, query); err != nil {
		return nil, err
	}
	return r.withScales(ctx, &system)
}

// ListScales returns a system's bands ordered by min percentage, highest first.
func (r *GradingConfigRepository) ListScales(ctx context.Context, systemID string) ([]models.GradeScale, error) {
	const query = `SELECT id, grading_system_id, grade_label, min_percentage, max_percentage, aggregate_points,
interpretation, is_pass, is_credit, display_order
FROM grade_scales WHERE grading_system_id = $1 ORDER BY min_percentage DESC, id ASC`
	var scales []models.GradeScale
	if err := r.db.SelectContext(ctx, &scales, query, systemID); err != nil {
		return nil, fmt.Errorf("list grade scales: %w", err)
	}
	return scales, nil
}

// ListActiveCategories returns active assessment categories in display order.
func (r *GradingConfigRepository) ListActiveCategories(ctx context.Context) ([]models.AssessmentCategory, error) {
	const query = `SELECT id, name, short_name, category_type, percentage, display_order, is_active
FROM assessment_categories WHERE is_active = TRUE ORDER BY display_order ASC, id ASC`
	var categories []models.AssessmentCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list assessment categories: %w", err)
	}
	return categories, nil
}

func (r *GradingConfigRepository) withScales(ctx context.Context, system *models.GradingSystem) (*models.GradingSystem, error) {
	scales, err := r.ListScales(ctx, system.ID)
	if err != nil {
		return nil, err
	}
	system.Scales = scales
	return system, nil
}
