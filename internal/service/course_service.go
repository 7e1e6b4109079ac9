package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
)

const msgCourseHasEnrollments = "cannot delete course with enrolled students"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error
	DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type courseEnrollmentReader interface {
	CountByCourseWithTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.RosterEntry, error)
}

// CreateCourseRequest represents payload for creating courses.
type CreateCourseRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Capacity    *int      `json:"capacity" validate:"required,gte=0"`
}

func (r CreateCourseRequest) normalize() CreateCourseRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	return r
}

// UpdateCourseRequest represents a partial course update. Absent fields are left unchanged.
type UpdateCourseRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,min=1"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gte=0"`
}

func (r UpdateCourseRequest) normalize() UpdateCourseRequest {
	r.Title = trimmedOptional(r.Title)
	r.Description = trimmedOptional(r.Description)
	return r
}

func (r UpdateCourseRequest) patch() models.CoursePatch {
	return models.CoursePatch{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Capacity:    r.Capacity,
	}
}

// RosterExport is a rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// CourseService manages the course catalog and its seat counters.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentReader
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	exportTitle string
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, enrollments courseEnrollmentReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:        repo,
		enrollments: enrollments,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         utcNow,
		exportTitle: "Course roster",
	}
}

// WithExportTitle overrides the title prefix of rendered rosters.
func (s *CourseService) WithExportTitle(prefix string) *CourseService {
	if strings.TrimSpace(prefix) != "" {
		s.exportTitle = prefix
	}
	return s
}

// Create registers a course with every seat available.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Capacity:    *req.Capacity,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsCheckViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "course violates constraint "+repository.ConstraintName(err))
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}

	s.logger.Info("course created", zap.Int64("course_id", course.ID), zap.Int("capacity", course.Capacity))
	result := course.WithStatus(s.now())
	return &result, nil
}

// List returns courses, optionally narrowed to one derived status.
func (s *CourseService) List(ctx context.Context, status string) ([]models.Course, error) {
	filter := models.CourseFilter{Now: s.now()}
	if status != "" {
		filter.Status = models.CourseStatus(strings.ToLower(strings.TrimSpace(status)))
		if !filter.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("invalid status %q", status))
		}
	}

	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	for i := range courses {
		courses[i] = courses[i].WithStatus(filter.Now)
	}
	return courses, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	result := course.WithStatus(s.now())
	return &result, nil
}

// Roster returns a course with every enrollment and its student.
func (s *CourseService) Roster(ctx context.Context, id int64) (*models.CourseRoster, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.enrollments.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load course roster")
	}
	return &models.CourseRoster{Course: *course, Enrollments: entries}, nil
}

// Update applies a partial update. A capacity change recomputes the available seats.
func (s *CourseService) Update(ctx context.Context, id int64, req UpdateCourseRequest) (*models.Course, error) {
	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	patch := req.patch()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	course, err := s.repo.LockByIDWithTx(ctx, tx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to load course")
		return nil, err
	}

	patch.Apply(course)
	if course.EndDate.Before(course.StartDate) {
		err = appErrors.Clone(appErrors.ErrBadRequest, "end_date must not be before start_date")
		return nil, err
	}

	if patch.Capacity != nil {
		var enrolled int
		enrolled, err = s.enrollments.CountByCourseWithTx(ctx, tx, id)
		if err != nil {
			err = appErrors.Internal(err, "failed to count course enrollments")
			return nil, err
		}
		seats := *patch.Capacity - enrolled
		if seats < 0 {
			err = appErrors.Clone(appErrors.ErrBadRequest, "cannot reduce capacity below enrolled count ("+strconv.Itoa(enrolled)+")")
			return nil, err
		}
		course.SeatsAvailable = seats
	}

	if err = s.repo.UpdateWithTx(ctx, tx, course); err != nil {
		err = appErrors.Internal(err, "failed to update course")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit course update")
		return nil, err
	}

	s.logger.Info("course updated", zap.Int64("course_id", id), zap.Strings("fields", patch.Fields()))
	result := course.WithStatus(s.now())
	return &result, nil
}

// Remove deletes a course that has no enrollments.
func (s *CourseService) Remove(ctx context.Context, id int64) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.repo.LockByIDWithTx(ctx, tx, id); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
			return err
		}
		err = appErrors.Internal(err, "failed to load course")
		return err
	}

	enrolled, err := s.enrollments.CountByCourseWithTx(ctx, tx, id)
	if err != nil {
		err = appErrors.Internal(err, "failed to count course enrollments")
		return err
	}
	if enrolled > 0 {
		err = appErrors.Clone(appErrors.ErrBadRequest, msgCourseHasEnrollments)
		return err
	}

	if err = s.repo.DeleteWithTx(ctx, tx, id); err != nil {
		if repository.IsForeignKeyViolation(err) {
			err = appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, msgCourseHasEnrollments)
			return err
		}
		err = appErrors.Internal(err, "failed to delete course")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit course deletion")
		return err
	}

	s.logger.Info("course deleted", zap.Int64("course_id", id))
	return nil
}

// ExportRoster renders the course roster as CSV or PDF.
func (s *CourseService) ExportRoster(ctx context.Context, id int64, format string) (*RosterExport, error) {
	f, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadRequest.Code, appErrors.ErrBadRequest.Status, "format must be csv or pdf")
	}

	roster, err := s.Roster(ctx, id)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("%s: %s", s.exportTitle, roster.Title),
		Headers: []string{"Enrollment ID", "Student", "Email", "Enrolled Date", "Completed", "Completion Date"},
		Rows:    make([][]string, 0, len(roster.Enrollments)),
	}
	for _, entry := range roster.Enrollments {
		completedAt := ""
		if entry.CompletionDate != nil {
			completedAt = entry.CompletionDate.UTC().Format(time.RFC3339)
		}
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Student.Name,
			entry.Student.Email,
			entry.EnrolledDate.UTC().Format(time.RFC3339),
			strconv.FormatBool(entry.Completed),
			completedAt,
		})
	}

	body, err := export.RendererFor(f).Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}

	return &RosterExport{
		Filename:    fmt.Sprintf("course-%d-roster.%s", id, f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func trimmedOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
