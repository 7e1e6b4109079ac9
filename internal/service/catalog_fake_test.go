package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// newStoreTxProvider opens transactions that hold the store exclusively and
// restore its rows on rollback, the way row locks and MVCC would.
func newStoreTxProvider(t *testing.T, store *catalogStore) txProvider {
	db := sqlx.NewDb(sql.OpenDB(storeConnector{store: store}), "postgres")
	t.Cleanup(func() { db.Close() })
	return db
}

type storeConnector struct{ store *catalogStore }

func (c storeConnector) Connect(context.Context) (driver.Conn, error) {
	return storeConn{store: c.store}, nil
}

func (c storeConnector) Driver() driver.Driver { return storeDriver{} }

type storeDriver struct{}

func (storeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("storeDriver: open through the connector")
}

type storeConn struct{ store *catalogStore }

func (storeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("storeDriver: statements are not supported")
}

func (storeConn) Close() error { return nil }

func (c storeConn) Begin() (driver.Tx, error) {
	c.store.txMu.Lock()
	return &storeTx{store: c.store, saved: c.store.snapshot()}, nil
}

type storeTx struct {
	store *catalogStore
	saved catalogSnapshot
}

func (t *storeTx) Commit() error {
	t.store.commits++
	t.store.txMu.Unlock()
	return nil
}

func (t *storeTx) Rollback() error {
	t.store.restore(t.saved)
	t.store.rollbacks++
	t.store.txMu.Unlock()
	return nil
}

type catalogSnapshot struct {
	courses     map[int64]models.Course
	students    map[int64]models.Student
	enrollments map[int64]models.Enrollment
}

// catalogStore keeps courses, students and enrollments in memory. Only
// transactions opened through newStoreTxProvider are honoured.
type catalogStore struct {
	courses     map[int64]*models.Course
	students    map[int64]*models.Student
	enrollments map[int64]*models.Enrollment
	nextID      int64

	txMu      sync.Mutex
	commits   int
	rollbacks int

	lastFilter      models.CourseFilter
	createErr       error
	deleteCourseErr error
	refuseDecrement bool
}

func newCatalogStore() *catalogStore {
	return &catalogStore{
		courses:     make(map[int64]*models.Course),
		students:    make(map[int64]*models.Student),
		enrollments: make(map[int64]*models.Enrollment),
	}
}

func (s *catalogStore) snapshot() catalogSnapshot {
	snap := catalogSnapshot{
		courses:     make(map[int64]models.Course, len(s.courses)),
		students:    make(map[int64]models.Student, len(s.students)),
		enrollments: make(map[int64]models.Enrollment, len(s.enrollments)),
	}
	for id, c := range s.courses {
		snap.courses[id] = *c
	}
	for id, st := range s.students {
		snap.students[id] = *st
	}
	for id, e := range s.enrollments {
		snap.enrollments[id] = *e
	}
	return snap
}

func (s *catalogStore) restore(snap catalogSnapshot) {
	s.courses = make(map[int64]*models.Course, len(snap.courses))
	for id, c := range snap.courses {
		c := c
		s.courses[id] = &c
	}
	s.students = make(map[int64]*models.Student, len(snap.students))
	for id, st := range snap.students {
		st := st
		s.students[id] = &st
	}
	s.enrollments = make(map[int64]*models.Enrollment, len(snap.enrollments))
	for id, e := range snap.enrollments {
		e := e
		s.enrollments[id] = &e
	}
}

func (s *catalogStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *catalogStore) addCourse(capacity int) *models.Course {
	now := time.Now().UTC()
	course := &models.Course{
		ID:             s.id(),
		Title:          "Go Bootcamp",
		Description:    "Concurrency and services",
		StartDate:      now.Add(24 * time.Hour),
		EndDate:        now.Add(30 * 24 * time.Hour),
		Capacity:       capacity,
		SeatsAvailable: capacity,
	}
	s.courses[course.ID] = course
	return course
}

func (s *catalogStore) addStudent(name string) *models.Student {
	student := &models.Student{ID: s.id(), Name: name, Email: name + "@example.com", EnrolledAt: time.Now().UTC()}
	s.students[student.ID] = student
	return student
}

func (s *catalogStore) enroll(studentID, courseID int64) *models.Enrollment {
	enrollment := &models.Enrollment{ID: s.id(), StudentID: studentID, CourseID: courseID, EnrolledDate: time.Now().UTC()}
	s.enrollments[enrollment.ID] = enrollment
	return enrollment
}

func (s *catalogStore) countFor(courseID int64) int {
	total := 0
	for _, e := range s.enrollments {
		if e.CourseID == courseID {
			total++
		}
	}
	return total
}

func (s *catalogStore) sortedEnrollments() []*models.Enrollment {
	out := make([]*models.Enrollment, 0, len(s.enrollments))
	for _, e := range s.enrollments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeCourses struct{ *catalogStore }

func (f fakeCourses) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	f.lastFilter = filter
	out := []models.Course{}
	for _, c := range f.courses {
		if filter.Status == "" || c.StatusAt(filter.Now) == filter.Status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCourses) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (f fakeCourses) LockByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return f.FindByID(ctx, id)
}

func (f fakeCourses) Create(ctx context.Context, course *models.Course) error {
	if f.createErr != nil {
		return f.createErr
	}
	course.ID = f.id()
	course.SeatsAvailable = course.Capacity
	stored := *course
	f.courses[course.ID] = &stored
	return nil
}

func (f fakeCourses) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	stored := *course
	f.courses[course.ID] = &stored
	return nil
}

func (f fakeCourses) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if f.deleteCourseErr != nil {
		return f.deleteCourseErr
	}
	delete(f.courses, id)
	return nil
}

func (f fakeCourses) DecrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	c, ok := f.courses[id]
	if !ok || f.refuseDecrement || c.SeatsAvailable <= 0 {
		return false, nil
	}
	c.SeatsAvailable--
	return true, nil
}

func (f fakeCourses) IncrementSeatWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	c, ok := f.courses[id]
	if !ok || c.SeatsAvailable >= c.Capacity {
		return false, nil
	}
	c.SeatsAvailable++
	return true, nil
}

type fakeStudents struct{ *catalogStore }

func (f fakeStudents) FindByIDWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *st
	return &copied, nil
}

type fakeEnrollments struct{ *catalogStore }

func (f fakeEnrollments) ExistsForPairWithTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID int64) (bool, error) {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeEnrollments) CreateWithTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	enrollment.ID = f.id()
	stored := *enrollment
	f.enrollments[enrollment.ID] = &stored
	return nil
}

func (f fakeEnrollments) DeleteWithTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(f.enrollments, id)
	return e, nil
}

func (f fakeEnrollments) MarkCompleted(ctx context.Context, id int64, at time.Time) (*models.Enrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e.Completed = true
	if e.CompletionDate == nil {
		completedAt := at
		e.CompletionDate = &completedAt
	}
	copied := *e
	return &copied, nil
}

func (f fakeEnrollments) ListActive(ctx context.Context) ([]models.EnrollmentDetail, error) {
	out := []models.EnrollmentDetail{}
	for _, e := range f.sortedEnrollments() {
		if e.Completed {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e, Student: *f.students[e.StudentID], Course: *f.courses[e.CourseID]})
	}
	return out, nil
}

func (f fakeEnrollments) CountByCourseWithTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int, error) {
	return f.countFor(courseID), nil
}

func (f fakeEnrollments) ListByCourse(ctx context.Context, courseID int64) ([]models.RosterEntry, error) {
	out := []models.RosterEntry{}
	for _, e := range f.sortedEnrollments() {
		if e.CourseID == courseID {
			out = append(out, models.RosterEntry{Enrollment: *e, Student: *f.students[e.StudentID]})
		}
	}
	return out, nil
}

func (f fakeEnrollments) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentHistoryEntry, error) {
	out := []models.StudentHistoryEntry{}
	for _, e := range f.sortedEnrollments() {
		if e.StudentID == studentID {
			out = append(out, models.StudentHistoryEntry{Enrollment: *e, Course: *f.courses[e.CourseID]})
		}
	}
	return out, nil
}
