package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/testutil"
)

func TestCatalogReader(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	cat := NewCatalogReader(db)

	c1 := testutil.CreateCourse(t, db, testutil.NewCourse("c1", "i1", course.StatusPublished, testutil.IntPtr(1), 2, 2))
	testutil.CreateCourse(t, db, testutil.NewCourse("c2", "i2", course.StatusDraft, nil, 0))

	t.Run("exists", func(t *testing.T) {
		ok, err := cat.CourseExists(ctx, "c1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = cat.CourseExists(ctx, "lol")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("capacity", func(t *testing.T) {
		capacity, err := cat.GetCourseCapacity(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, course.StatusPublished, capacity.Status)
		require.NotNil(t, capacity.MaxStudents)
		assert.Equal(t, 1, *capacity.MaxStudents)

		capacity, err = cat.GetCourseCapacity(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, course.StatusDraft, capacity.Status)
		assert.Nil(t, capacity.MaxStudents)

		_, err = cat.GetCourseCapacity(ctx, "lol")
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("lessons", func(t *testing.T) {
		modules, err := cat.GetCourseLessonIDs(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, c1.Modules, modules)
		assert.Equal(t, []string{"c1-l1", "c1-l2", "c1-l3", "c1-l4"}, course.LessonIDs(modules))

		// a module without lessons is still listed
		modules, err = cat.GetCourseLessonIDs(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, []course.Module{{ID: "c2-m1", LessonIDs: []string{}}}, modules)

		_, err = cat.GetCourseLessonIDs(ctx, "lol")
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("removed lessons are excluded", func(t *testing.T) {
		_, err := db.Exec("UPDATE lessons SET deleted_at = CURRENT_TIMESTAMP WHERE id = 'c1-l2'")
		require.NoError(t, err)
		t.Cleanup(func() { _, _ = db.Exec("UPDATE lessons SET deleted_at = NULL WHERE id = 'c1-l2'") })

		modules, err := cat.GetCourseLessonIDs(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1-l1", "c1-l3", "c1-l4"}, course.LessonIDs(modules))
	})

	t.Run("instructor", func(t *testing.T) {
		id, err := cat.GetCourseInstructor(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, "i2", id)

		_, err = cat.GetCourseInstructor(ctx, "lol")
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("removed course", func(t *testing.T) {
		_, err := db.Exec("UPDATE courses SET deleted_at = CURRENT_TIMESTAMP WHERE id = 'c2'")
		require.NoError(t, err)

		ok, err := cat.CourseExists(ctx, "c2")
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = cat.GetCourseCapacity(ctx, "c2")
		assert.Equal(t, course.ErrNotFound, err)
	})
}
