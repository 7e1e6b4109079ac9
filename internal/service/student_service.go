package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

type studentHistoryReader interface {
	ListByStudent(ctx context.Context, studentID int64) ([]models.StudentHistoryEntry, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Name       string     `json:"name" validate:"required,max=255"`
	Email      string     `json:"email" validate:"required,email"`
	EnrolledAt *time.Time `json:"enrolled_at"`
}

func (r CreateStudentRequest) normalize() CreateStudentRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
	return r
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	enrollments studentHistoryReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, enrollments studentHistoryReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, enrollments: enrollments, validator: validate, logger: logger, now: utcNow}
}

// List returns every student ordered by id.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	return students, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

// History returns a student with their enrollments, newest first.
func (s *StudentService) History(ctx context.Context, id int64) (*models.StudentHistory, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.enrollments.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student history")
	}
	now := s.now()
	for i := range entries {
		entries[i].Course = entries[i].Course.WithStatus(now)
	}
	return &models.StudentHistory{Student: *student, Enrollments: entries}, nil
}

// Create registers a student with a unique email.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req = req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	student := &models.Student{Name: req.Name, Email: req.Email}
	if req.EnrolledAt != nil {
		student.EnrolledAt = req.EnrolledAt.UTC()
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}

	s.logger.Info("student created", zap.Int64("student_id", student.ID))
	return student, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
