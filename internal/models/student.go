package models

// Student represents a learner with their current class placement.
type Student struct {
	ID             string  `db:"id" json:"id"`
	FullName       string  `db:"full_name" json:"full_name"`
	Active         bool    `db:"active" json:"active"`
	CurrentClassID *string `db:"current_class_id" json:"current_class_id,omitempty"`
}
