package sqlxrepos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/core/enrollment"
	"github.com/masomo/lms/testutil"
)

func setupEnrollments(t *testing.T) (*sqlx.DB, *enrollmentRepository) {
	db := testutil.OpenDB(t)
	testutil.CreateCourse(t, db, testutil.NewCourse("c1", "i1", course.StatusPublished, nil, 2))
	testutil.CreateCourse(t, db, testutil.NewCourse("c2", "i1", course.StatusPublished, nil, 2))
	return db, NewEnrollmentRepository(db)
}

func TestEnrollmentRepository_CreateEnrollment(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	enr, err := repo.CreateEnrollment(ctx, "s1", "c1", now)
	require.NoError(t, err)
	assert.NotEmpty(t, enr.ID)
	assert.Equal(t, enrollment.StatusActive, enr.Status)
	assert.Zero(t, enr.Progress)
	assert.True(t, enr.EnrolledAt.Equal(now))
	assert.Nil(t, enr.StartedAt)
	assert.Nil(t, enr.CompletedAt)

	got, err := repo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
	require.NoError(t, err)
	assert.Equal(t, enr.ID, got.ID)
	assert.True(t, got.EnrolledAt.Equal(now))

	got, err = repo.GetEnrollment(ctx, enrollment.GetFilter{StudentID: "s1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, enr.ID, got.ID)

	_, err = repo.CreateEnrollment(ctx, "s1", "c1", now)
	assert.True(t, errors.Is(err, enrollment.ErrDuplicateEnrollment), "got %v", err)

	// other course, other student
	_, err = repo.CreateEnrollment(ctx, "s1", "c2", now)
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(ctx, "s2", "c1", now)
	require.NoError(t, err)

	// a removed enrollment frees the pair
	require.NoError(t, repo.SoftDelete(ctx, enr.ID, now))
	_, err = repo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
	assert.Equal(t, enrollment.ErrEnrollmentNotFound, err)
	again, err := repo.CreateEnrollment(ctx, "s1", "c1", now)
	require.NoError(t, err)
	assert.NotEqual(t, enr.ID, again.ID)

	assert.Equal(t, enrollment.ErrEnrollmentNotFound, repo.SoftDelete(ctx, enr.ID, now))
}

func TestEnrollmentRepository_CreateEnrollment_concurrent(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CreateEnrollment(ctx, "s1", "c1", time.Now())
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, enrollment.ErrDuplicateEnrollment):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dup)

	n, err := repo.CountByCourse(ctx, "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnrollmentRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)
	now := time.Now().UTC()

	enr, err := repo.CreateEnrollment(ctx, "s1", "c1", now)
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, enr.ID, enrollment.StatusSuspended, now)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusSuspended, updated.Status)
	assert.Nil(t, updated.CompletedAt)
	assert.Nil(t, updated.StartedAt)

	_, err = repo.UpdateStatus(ctx, enr.ID, enrollment.StatusCompleted, now)
	assert.True(t, errors.Is(err, enrollment.ErrInvalidTransition))
	assert.EqualError(t, err, "cannot transition from SUSPENDED to COMPLETED")

	_, err = repo.UpdateStatus(ctx, enr.ID, enrollment.StatusActive, now)
	require.NoError(t, err)

	updated, err = repo.UpdateStatus(ctx, enr.ID, enrollment.StatusCompleted, now)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.StartedAt, "completing without any lesson still starts the enrollment")

	got, err := repo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.CompletedAt)
	assert.NotNil(t, got.StartedAt)

	// terminal
	_, err = repo.UpdateStatus(ctx, enr.ID, enrollment.StatusActive, now)
	assert.True(t, errors.Is(err, enrollment.ErrInvalidTransition))

	_, err = repo.UpdateStatus(ctx, "lol", enrollment.StatusActive, now)
	assert.Equal(t, enrollment.ErrEnrollmentNotFound, err)
}

func TestEnrollmentRepository_UpdateProgress(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)
	t0 := time.Now().UTC().Truncate(time.Second)
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)

	enr, err := repo.CreateEnrollment(ctx, "s1", "c1", t0)
	require.NoError(t, err)

	// 0 keeps startedAt unset but records the access
	updated, err := repo.UpdateProgress(ctx, enr.ID, 0, t0)
	require.NoError(t, err)
	assert.Nil(t, updated.StartedAt)
	require.NotNil(t, updated.LastAccessedAt)

	updated, err = repo.UpdateProgress(ctx, enr.ID, 50, t1)
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Progress)
	require.NotNil(t, updated.StartedAt)
	assert.True(t, updated.StartedAt.Equal(t1))
	assert.Equal(t, enrollment.StatusActive, updated.Status)

	// startedAt is set once
	updated, err = repo.UpdateProgress(ctx, enr.ID, 150, t2)
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progress, "clamped")
	assert.True(t, updated.StartedAt.Equal(t1))
	assert.Equal(t, enrollment.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, updated.CompletedAt.Equal(t2))
	assert.True(t, updated.LastAccessedAt.Equal(t2))

	// completedAt is set once
	updated, err = repo.UpdateProgress(ctx, enr.ID, 100, t2.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, updated.CompletedAt.Equal(t2))

	updated, err = repo.UpdateProgress(ctx, enr.ID, -5, t2)
	require.NoError(t, err)
	assert.Zero(t, updated.Progress, "clamped")
	assert.Equal(t, enrollment.StatusCompleted, updated.Status)
}

func TestEnrollmentRepository_UpdateProgress_notActive(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)
	now := time.Now().UTC()

	enr, err := repo.CreateEnrollment(ctx, "s1", "c1", now)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, enr.ID, enrollment.StatusDropped, now)
	require.NoError(t, err)

	// full progress on a dropped enrollment stamps completedAt but keeps the status
	updated, err := repo.UpdateProgress(ctx, enr.ID, 100, now)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDropped, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
}

func TestEnrollmentRepository_inCallerTx(t *testing.T) {
	ctx := context.Background()
	db, repo := setupEnrollments(t)
	now := time.Now().UTC()

	errRollback := errors.New("rollback")
	err := core.RunInTx(ctx, db, func(exec core.DBExecutor) error {
		enr, err := repo.CreateEnrollment(ctx, "s1", "c1", now, exec)
		if err != nil {
			return err
		}
		if _, err = repo.UpdateProgress(ctx, enr.ID, 50, now, exec); err != nil {
			return err
		}
		return errRollback
	})
	assert.Equal(t, errRollback, err)

	// nothing was left behind
	_, err = repo.GetEnrollment(ctx, enrollment.GetFilter{StudentID: "s1", CourseID: "c1"})
	assert.Equal(t, enrollment.ErrEnrollmentNotFound, err)
}

func TestEnrollmentRepository_QueryAndCount(t *testing.T) {
	ctx := context.Background()
	_, repo := setupEnrollments(t)
	t0 := time.Now().UTC().Truncate(time.Second)

	var enrs []enrollment.Enrollment
	for i, pair := range [][2]string{{"s1", "c1"}, {"s2", "c1"}, {"s3", "c1"}, {"s1", "c2"}} {
		enr, err := repo.CreateEnrollment(ctx, pair[0], pair[1], t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		enrs = append(enrs, enr)
	}
	_, err := repo.UpdateStatus(ctx, enrs[1].ID, enrollment.StatusDropped, t0)
	require.NoError(t, err)
	_, err = repo.UpdateProgress(ctx, enrs[2].ID, 100, t0)
	require.NoError(t, err)
	_, err = repo.UpdateProgress(ctx, enrs[3].ID, 40, t0)
	require.NoError(t, err)

	ids := func(enrs []enrollment.Enrollment) []string {
		out := make([]string, 0, len(enrs))
		for _, e := range enrs {
			out = append(out, e.ID)
		}
		return out
	}
	newest := []core.DBOrdering{{Field: "enrolled_at"}}

	tests := []struct {
		name      string
		filter    enrollment.QueryFilter
		ordering  []core.DBOrdering
		wantIDs   []string
		wantTotal int
	}{
		{name: "all, newest first", ordering: newest, wantIDs: ids([]enrollment.Enrollment{enrs[3], enrs[2], enrs[1], enrs[0]}), wantTotal: 4},
		{name: "oldest first", ordering: []core.DBOrdering{{Field: "enrolled_at", Ascending: true}}, wantIDs: ids(enrs), wantTotal: 4},
		{name: "by progress", filter: enrollment.QueryFilter{CourseID: "c1"}, ordering: []core.DBOrdering{{Field: "progress"}, {Field: "enrolled_at", Ascending: true}}, wantIDs: ids([]enrollment.Enrollment{enrs[2], enrs[0], enrs[1]}), wantTotal: 3},
		{name: "course", filter: enrollment.QueryFilter{CourseID: "c2"}, ordering: newest, wantIDs: ids(enrs[3:]), wantTotal: 1},
		{name: "student", filter: enrollment.QueryFilter{StudentID: "s1"}, ordering: newest, wantIDs: ids([]enrollment.Enrollment{enrs[3], enrs[0]}), wantTotal: 2},
		{name: "status", filter: enrollment.QueryFilter{Status: enrollment.StatusDropped}, ordering: newest, wantIDs: ids(enrs[1:2]), wantTotal: 1},
		{name: "page 1", filter: enrollment.QueryFilter{Page: 1, Limit: 3}, ordering: newest, wantIDs: ids([]enrollment.Enrollment{enrs[3], enrs[2], enrs[1]}), wantTotal: 4},
		{name: "page 2", filter: enrollment.QueryFilter{Page: 2, Limit: 3}, ordering: newest, wantIDs: ids(enrs[:1]), wantTotal: 4},
		{name: "unknown ordering field is ignored", filter: enrollment.QueryFilter{StudentID: "s3"}, ordering: []core.DBOrdering{{Field: "id; DROP TABLE enrollments"}}, wantIDs: ids(enrs[2:3]), wantTotal: 1},
		{name: "none", filter: enrollment.QueryFilter{StudentID: "lol"}, wantIDs: []string{}, wantTotal: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.QueryEnrollments(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantIDs, ids(got))
		})
	}

	counts := []struct {
		name     string
		count    func() (int, error)
		wantSize int
	}{
		{name: "course total", count: func() (int, error) { return repo.CountByCourse(ctx, "c1", nil) }, wantSize: 3},
		{name: "course active", count: func() (int, error) {
			return repo.CountByCourse(ctx, "c1", []enrollment.Status{enrollment.StatusActive})
		}, wantSize: 1},
		{name: "course active or completed", count: func() (int, error) {
			return repo.CountByCourse(ctx, "c1", []enrollment.Status{enrollment.StatusActive, enrollment.StatusCompleted})
		}, wantSize: 2},
		{name: "student total", count: func() (int, error) { return repo.CountByStudent(ctx, "s1", nil) }, wantSize: 2},
		{name: "student dropped", count: func() (int, error) {
			return repo.CountByStudent(ctx, "s2", []enrollment.Status{enrollment.StatusDropped})
		}, wantSize: 1},
	}
	for _, tt := range counts {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.count()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, n)
		})
	}
}
