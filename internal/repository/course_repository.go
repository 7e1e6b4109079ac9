package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const courseColumns = `id, title, description, start_date, end_date, capacity, seats_available, created_at, updated_at`

// CourseRepository handles persistence of courses and their seat counters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the derived status filter ordered by start date.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var conditions []string
	var args []interface{}

	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	switch filter.Status {
	case models.CourseStatusUpcoming:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("start_date > $%d", len(args)))
	case models.CourseStatusOngoing:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d AND end_date >= $%d", len(args), len(args)))
	case models.CourseStatusFinished:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("end_date < $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := "SELECT " + courseColumns + " FROM courses" + clause + " ORDER BY start_date ASC, id ASC"

	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// LockByIDWithTx loads a course and holds its row lock until tx ends.
func (r *CourseRepository) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`
	var course models.Course
	if err := tx.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a course. seats_available starts equal to capacity.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	course.SeatsAvailable = course.Capacity
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (title, description, start_date, end_date, capacity, seats_available, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.GetContext(ctx, &course.ID, query,
		course.Title, course.Description, course.StartDate, course.EndDate,
		course.Capacity, course.SeatsAvailable, course.CreatedAt, course.UpdatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateWithTx writes every mutable column of course in one statement.
func (r *CourseRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, start_date = :start_date, end_date = :end_date,
        capacity = :capacity, seats_available = :seats_available, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// DeleteWithTx removes a course row.
func (r *CourseRepository) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// DecrementSeatWithTx takes one seat. It reports false when no seat was left.
func (r *CourseRepository) DecrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	const query = `UPDATE courses SET seats_available = seats_available - 1, updated_at = $2 WHERE id = $1 AND seats_available > 0`
	return r.execGuarded(ctx, tx, "decrement course seats", query, id)
}

// IncrementSeatWithTx returns one seat. It reports false when the counter is already at capacity.
func (r *CourseRepository) IncrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	const query = `UPDATE courses SET seats_available = seats_available + 1, updated_at = $2 WHERE id = $1 AND seats_available < capacity`
	return r.execGuarded(ctx, tx, "increment course seats", query, id)
}

func (r *CourseRepository) execGuarded(ctx context.Context, tx *sqlx.Tx, op, query string, id int64) (bool, error) {
	res, err := tx.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected == 1, nil
}
