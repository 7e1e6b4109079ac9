package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type mockInstructorRepo struct {
	instructors []models.Instructor
}

func (m *mockInstructorRepo) List(ctx context.Context) ([]models.Instructor, error) {
	return append([]models.Instructor{}, m.instructors...), nil
}

func (m *mockInstructorRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, i := range m.instructors {
		if i.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInstructorRepo) Create(ctx context.Context, instructor *models.Instructor) error {
	instructor.ID = int64(len(m.instructors) + 1)
	m.instructors = append(m.instructors, *instructor)
	return nil
}

func TestInstructorServiceCreate(t *testing.T) {
	repo := &mockInstructorRepo{}
	svc := NewInstructorService(repo, nil, nil)
	bio := "  Backend engineer  "

	instructor, err := svc.Create(context.Background(), CreateInstructorRequest{Name: "John Doe", Email: "JOHN@example.com", Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, int64(1), instructor.ID)
	assert.Equal(t, "john@example.com", instructor.Email)
	require.NotNil(t, instructor.Bio)
	assert.Equal(t, "Backend engineer", *instructor.Bio)

	blank := "   "
	second, err := svc.Create(context.Background(), CreateInstructorRequest{Name: "Jane", Email: "jane@example.com", Bio: &blank})
	require.NoError(t, err)
	assert.Nil(t, second.Bio)

	_, err = svc.Create(context.Background(), CreateInstructorRequest{Name: "Dup", Email: "john@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateInstructorRequest{Email: "x@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInstructorServiceCreateTrimsBeforeValidating(t *testing.T) {
	repo := &mockInstructorRepo{}
	svc := NewInstructorService(repo, nil, nil)

	instructor, err := svc.Create(context.Background(), CreateInstructorRequest{Name: " Jo ", Email: " J@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "Jo", instructor.Name)
	assert.Equal(t, "j@example.com", instructor.Email)

	_, err = svc.Create(context.Background(), CreateInstructorRequest{Name: "   ", Email: "blank@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.instructors, 1)
}
