package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// Enrollment operations reported to metrics.
const (
	OperationEnroll   = "enroll"
	OperationUnenroll = "unenroll"
	OperationComplete = "complete"
)

const (
	msgNoSeats         = "no seats available"
	msgAlreadyEnrolled = "student is already enrolled in this course"
)

type enrollmentRepository interface {
	ExistsForPairWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID int64) (bool, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error)
	MarkCompleted(ctx context.Context, id int64, at time.Time) (*models.Enrollment, error)
	ListActive(ctx context.Context) ([]models.EnrollmentDetail, error)
}

type seatRepository interface {
	LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	DecrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error)
	IncrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error)
}

type studentLookup interface {
	FindByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error)
}

// EnrollRequest is the payload of POST /enroll.
type EnrollRequest struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	CourseID  int64 `json:"course_id" validate:"required,gt=0"`
}

// EnrollmentIDRequest is the payload of POST /complete and POST /unenroll.
type EnrollmentIDRequest struct {
	EnrollmentID int64 `json:"enrollment_id" validate:"required,gt=0"`
}

// EnrollmentService runs the enrollment state machine and keeps course seat counters consistent.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   seatRepository
	students  studentLookup
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses seatRepository, students studentLookup, tx txProvider, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		students:  students,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       utcNow,
	}
}

// Enroll creates an enrollment and takes one seat of the course atomically.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (enrollment *models.Enrollment, err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(OperationEnroll, outcomeOf(err)) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("enrollment_enroll_tx", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.students.FindByIDWithTx(ctx, tx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "student not found")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to load student")
		return nil, err
	}

	course, err := s.courses.LockByIDWithTx(ctx, tx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to load course")
		return nil, err
	}
	if course.SeatsAvailable <= 0 {
		err = appErrors.Clone(appErrors.ErrConflict, msgNoSeats)
		return nil, err
	}

	exists, err := s.repo.ExistsForPairWithTx(ctx, tx, req.StudentID, req.CourseID)
	if err != nil {
		err = appErrors.Internal(err, "failed to check enrollment")
		return nil, err
	}
	if exists {
		err = appErrors.Clone(appErrors.ErrConflict, msgAlreadyEnrolled)
		return nil, err
	}

	enrollment = &models.Enrollment{
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		EnrolledDate: s.now(),
	}
	if err = s.repo.CreateWithTx(ctx, tx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			err = appErrors.Clone(appErrors.ErrConflict, msgAlreadyEnrolled)
			return nil, err
		}
		err = appErrors.Internal(err, "failed to create enrollment")
		return nil, err
	}

	taken, err := s.courses.DecrementSeatWithTx(ctx, tx, req.CourseID)
	if err != nil {
		err = appErrors.Internal(err, "failed to update course seats")
		return nil, err
	}
	if !taken {
		err = appErrors.Clone(appErrors.ErrConflict, msgNoSeats)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit enrollment")
		return nil, err
	}

	s.logger.Info("enrollment created",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("student_id", enrollment.StudentID),
		zap.Int64("course_id", enrollment.CourseID),
	)
	return enrollment, nil
}

// Unenroll deletes an enrollment and returns its seat to the course atomically.
func (s *EnrollmentService) Unenroll(ctx context.Context, req EnrollmentIDRequest) (err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(OperationUnenroll, outcomeOf(err)) }()

	if err = s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("enrollment_unenroll_tx", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleted, err := s.repo.DeleteWithTx(ctx, tx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return err
		}
		err = appErrors.Internal(err, "failed to delete enrollment")
		return err
	}

	restored, err := s.courses.IncrementSeatWithTx(ctx, tx, deleted.CourseID)
	if err != nil {
		err = appErrors.Internal(err, "failed to update course seats")
		return err
	}
	if !restored {
		err = appErrors.Clone(appErrors.ErrInternal, "course seat counter already at capacity")
		return err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit unenrollment")
		return err
	}

	s.logger.Info("enrollment removed",
		zap.Int64("enrollment_id", deleted.ID),
		zap.Int64("student_id", deleted.StudentID),
		zap.Int64("course_id", deleted.CourseID),
	)
	return nil
}

// Complete marks an enrollment completed. Completing twice keeps the first completion date.
func (s *EnrollmentService) Complete(ctx context.Context, req EnrollmentIDRequest) (enrollment *models.Enrollment, err error) {
	defer func() { s.metrics.RecordEnrollmentOperation(OperationComplete, outcomeOf(err)) }()

	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	start := time.Now()
	enrollment, err = s.repo.MarkCompleted(ctx, req.EnrollmentID, s.now())
	s.metrics.ObserveDBQuery("enrollment_complete", time.Since(start))
	if err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to complete enrollment")
		return nil, err
	}

	s.logger.Info("enrollment completed",
		zap.Int64("enrollment_id", enrollment.ID),
		zap.Int64("course_id", enrollment.CourseID),
	)
	return enrollment, nil
}

// ListActive returns enrollments that are not completed with their student and course.
func (s *EnrollmentService) ListActive(ctx context.Context) ([]models.EnrollmentDetail, error) {
	details, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list active enrollments")
	}
	now := s.now()
	for i := range details {
		details[i].Course = details[i].Course.WithStatus(now)
	}
	return details, nil
}
