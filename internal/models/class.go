package models

// Class represents an academic class or section.
type Class struct {
	ID    string      `db:"id" json:"id"`
	Name  string      `db:"name" json:"name"`
	Level SchoolLevel `db:"level" json:"level"`
}

// SubjectEnrollment is a student's elective enrollment in a subject for a class.
type SubjectEnrollment struct {
	StudentID string `db:"student_id" json:"student_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}
