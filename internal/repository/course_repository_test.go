package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var courseRowColumns = []string{"id", "title", "description", "start_date", "end_date", "capacity", "seats_available", "created_at", "updated_at"}

func courseRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(courseRowColumns).
		AddRow(1, "Go Bootcamp", "Backend with Go", now.Add(24*time.Hour), now.Add(48*time.Hour), 30, 28, now, now)
}

func TestCourseRepositoryListByStatus(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		status models.CourseStatus
		where  string
	}{
		{models.CourseStatusUpcoming, " WHERE start_date > $1"},
		{models.CourseStatusOngoing, " WHERE start_date <= $1 AND end_date >= $1"},
		{models.CourseStatusFinished, " WHERE end_date < $1"},
	}
	for _, tc := range cases {
		db, mock := newRepoMock(t)
		repo := NewCourseRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM courses" + tc.where + " ORDER BY start_date ASC, id ASC")).
			WithArgs(now).
			WillReturnRows(courseRows(now))

		courses, err := repo.List(context.Background(), models.CourseFilter{Status: tc.status, Now: now})
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, 28, courses[0].SeatsAvailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestCourseRepositoryListAll(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + courseColumns + " FROM courses ORDER BY start_date ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows(courseRowColumns))

	courses, err := repo.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseRepositoryCreateSetsSeats(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)
	start := time.Now().Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs("Go Bootcamp", "desc", start, start.Add(time.Hour), 25, 25, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	course := &models.Course{Title: "Go Bootcamp", Description: "desc", StartDate: start, EndDate: start.Add(time.Hour), Capacity: 25, SeatsAvailable: 3}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, int64(7), course.ID)
	assert.Equal(t, 25, course.SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryLockAndUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(courseRows(now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET title = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	course, err := repo.LockByIDWithTx(context.Background(), tx, 1)
	require.NoError(t, err)
	course.Capacity = 40
	require.NoError(t, repo.UpdateWithTx(context.Background(), tx, course))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryGuardedSeatUpdates(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET seats_available = seats_available - 1, updated_at = $2 WHERE id = $1 AND seats_available > 0")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET seats_available = seats_available - 1")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET seats_available = seats_available + 1, updated_at = $2 WHERE id = $1 AND seats_available < capacity")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	ok, err := repo.DecrementSeatWithTx(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementSeatWithTx(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.IncrementSeatWithTx(context.Background(), tx, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment course seats")

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDelete(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteWithTx(context.Background(), tx, 3))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
