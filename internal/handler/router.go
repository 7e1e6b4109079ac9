package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler mounted by the API.
type Handlers struct {
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Students    *StudentHandler
	Instructors *InstructorHandler
}

// RegisterRoutes mounts the domain routes on r.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	courses := r.Group("/courses")
	courses.POST("", h.Courses.Create)
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.GET("/:id/roster", h.Courses.Roster)
	courses.GET("/:id/roster/export", h.Courses.ExportRoster)
	courses.PATCH("/:id", h.Courses.Update)
	courses.DELETE("/:id", h.Courses.Delete)

	r.POST("/enroll", h.Enrollments.Enroll)
	r.POST("/complete", h.Enrollments.Complete)
	r.POST("/unenroll", h.Enrollments.Unenroll)
	r.GET("/enrollments/active", h.Enrollments.Active)

	instructors := r.Group("/instructors")
	instructors.POST("", h.Instructors.Create)
	instructors.GET("", h.Instructors.List)

	students := r.Group("/students")
	students.POST("", h.Students.Create)
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/history", h.Students.History)
}
