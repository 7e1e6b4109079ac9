package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const (
	enrollmentColumns       = `id, student_id, course_id, enrolled_date, completed, completion_date`
	enrollmentJoinedColumns = `e.id, e.student_id, e.course_id, e.enrolled_date, e.completed, e.completion_date`
	studentNestedColumns    = `s.id AS "student.id", s.name AS "student.name", s.email AS "student.email",
        s.enrolled_at AS "student.enrolled_at", s.created_at AS "student.created_at"`
	courseNestedColumns = `c.id AS "course.id", c.title AS "course.title", c.description AS "course.description",
        c.start_date AS "course.start_date", c.end_date AS "course.end_date", c.capacity AS "course.capacity",
        c.seats_available AS "course.seats_available", c.created_at AS "course.created_at", c.updated_at AS "course.updated_at"`
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ExistsForPairWithTx checks whether the student already holds an enrollment row for the course.
func (r *EnrollmentRepository) ExistsForPairWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID int64) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := tx.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment pair: %w", err)
	}
	return true, nil
}

// CountByCourseWithTx counts every enrollment row of the course, completed or not.
func (r *EnrollmentRepository) CountByCourseWithTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var total int
	if err := tx.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return total, nil
}

// CreateWithTx inserts a new enrollment row.
func (r *EnrollmentRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.EnrolledDate.IsZero() {
		enrollment.EnrolledDate = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (student_id, course_id, enrolled_date, completed, completion_date)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := tx.GetContext(ctx, &enrollment.ID, query,
		enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledDate, enrollment.Completed, enrollment.CompletionDate); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// DeleteWithTx removes an enrollment and returns the deleted row. sql.ErrNoRows means it did not exist.
func (r *EnrollmentRepository) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error) {
	const query = `DELETE FROM enrollments WHERE id = $1 RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// MarkCompleted flags the enrollment completed. An existing completion date is kept.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) (*models.Enrollment, error) {
	const query = `UPDATE enrollments SET completed = TRUE, completion_date = COALESCE(completion_date, $2)
        WHERE id = $1 RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, at); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActive returns every enrollment that is not completed, with its student and course.
func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]models.EnrollmentDetail, error) {
	const query = `SELECT ` + enrollmentJoinedColumns + `,
        ` + studentNestedColumns + `,
        ` + courseNestedColumns + `
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.completed = FALSE
        ORDER BY e.enrolled_date ASC, e.id ASC`
	details := []models.EnrollmentDetail{}
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return details, nil
}

// ListByCourse returns the course roster ordered by enrollment date.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.RosterEntry, error) {
	const query = `SELECT ` + enrollmentJoinedColumns + `,
        ` + studentNestedColumns + `
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY e.enrolled_date ASC, e.id ASC`
	entries := []models.RosterEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return entries, nil
}

// ListByStudent returns a student's enrollments newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentHistoryEntry, error) {
	const query = `SELECT ` + enrollmentJoinedColumns + `,
        ` + courseNestedColumns + `
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_date DESC, e.id DESC`
	entries := []models.StudentHistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list student history: %w", err)
	}
	return entries, nil
}
