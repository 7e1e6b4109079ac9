package models

import "time"

// Student is a learner who can enroll in courses.
type Student struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StudentHistory is a student with every enrollment they hold, newest first.
type StudentHistory struct {
	Student
	Enrollments []StudentHistoryEntry `json:"enrollments"`
}

// StudentHistoryEntry pairs an enrollment with its course.
type StudentHistoryEntry struct {
	Enrollment
	Course Course `db:"course" json:"course"`
}
