package models

import "time"

// Enrollment links one student to one course. A row occupies a seat until it is deleted.
type Enrollment struct {
	ID             int64      `db:"id" json:"id"`
	StudentID      int64      `db:"student_id" json:"student_id"`
	CourseID       int64      `db:"course_id" json:"course_id"`
	EnrolledDate   time.Time  `db:"enrolled_date" json:"enrolled_date"`
	Completed      bool       `db:"completed" json:"completed"`
	CompletionDate *time.Time `db:"completion_date" json:"completion_date,omitempty"`
}

// EnrollmentDetail enriches Enrollment with its student and course.
type EnrollmentDetail struct {
	Enrollment
	Student Student `db:"student" json:"student"`
	Course  Course  `db:"course" json:"course"`
}
