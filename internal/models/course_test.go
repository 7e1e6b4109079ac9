package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCourseStatusAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	course := Course{StartDate: start, EndDate: end}

	cases := []struct {
		now  time.Time
		want CourseStatus
	}{
		{start.Add(-time.Second), CourseStatusUpcoming},
		{start, CourseStatusOngoing},
		{start.Add(24 * time.Hour), CourseStatusOngoing},
		{end, CourseStatusOngoing},
		{end.Add(time.Second), CourseStatusFinished},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, course.StatusAt(tc.now), tc.now.String())
	}
	assert.Equal(t, CourseStatusFinished, course.WithStatus(end.Add(time.Hour)).Status)
}

func TestCourseStatusValid(t *testing.T) {
	assert.True(t, CourseStatusOngoing.Valid())
	assert.False(t, CourseStatus("davom").Valid())
	assert.False(t, CourseStatus("").Valid())
}

func TestCoursePatchApply(t *testing.T) {
	title := "Go in Practice"
	capacity := 12
	patch := CoursePatch{Title: &title, Capacity: &capacity}

	course := Course{Title: "Old", Description: "kept", Capacity: 10}
	patch.Apply(&course)

	assert.Equal(t, "Go in Practice", course.Title)
	assert.Equal(t, "kept", course.Description)
	assert.Equal(t, 12, course.Capacity)
	assert.Equal(t, []string{"title", "capacity", "seats_available"}, patch.Fields())
	assert.Empty(t, CoursePatch{}.Fields())
}
