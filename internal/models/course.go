package models

import "time"

// CourseStatus is derived from the course dates at read time and never stored.
type CourseStatus string

// Course statuses.
const (
	CourseStatusUpcoming CourseStatus = "upcoming"
	CourseStatusOngoing  CourseStatus = "ongoing"
	CourseStatusFinished CourseStatus = "finished"
)

// Valid reports whether s is a known status.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusUpcoming, CourseStatusOngoing, CourseStatusFinished:
		return true
	}
	return false
}

// Course is a catalog entry with seat accounting.
type Course struct {
	ID             int64        `db:"id" json:"id"`
	Title          string       `db:"title" json:"title"`
	Description    string       `db:"description" json:"description"`
	StartDate      time.Time    `db:"start_date" json:"start_date"`
	EndDate        time.Time    `db:"end_date" json:"end_date"`
	Capacity       int          `db:"capacity" json:"capacity"`
	SeatsAvailable int          `db:"seats_available" json:"seats_available"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
	Status         CourseStatus `db:"-" json:"status"`
}

// StatusAt derives the course status at now. Both date bounds are inclusive for ongoing.
func (c Course) StatusAt(now time.Time) CourseStatus {
	switch {
	case now.Before(c.StartDate):
		return CourseStatusUpcoming
	case now.After(c.EndDate):
		return CourseStatusFinished
	default:
		return CourseStatusOngoing
	}
}

// WithStatus returns a copy of the course with Status filled for now.
func (c Course) WithStatus(now time.Time) Course {
	c.Status = c.StatusAt(now)
	return c
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Status CourseStatus
	Now    time.Time
}

// CoursePatch carries the optional fields of a course update.
type CoursePatch struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Capacity    *int
}

// Fields lists the column names set by the patch.
func (p CoursePatch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.StartDate != nil {
		fields = append(fields, "start_date")
	}
	if p.EndDate != nil {
		fields = append(fields, "end_date")
	}
	if p.Capacity != nil {
		fields = append(fields, "capacity", "seats_available")
	}
	return fields
}

// Apply writes the patch onto c. Seat recomputation is left to the caller.
func (p CoursePatch) Apply(c *Course) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.StartDate != nil {
		c.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.Capacity != nil {
		c.Capacity = *p.Capacity
	}
}

// CourseRoster is a course with all of its enrollments and their students.
type CourseRoster struct {
	Course
	Enrollments []RosterEntry `json:"enrollments"`
}

// RosterEntry pairs an enrollment with its student.
type RosterEntry struct {
	Enrollment
	Student Student `db:"student" json:"student"`
}
