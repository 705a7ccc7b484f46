package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masomo/lms/core/course"
)

func TestCatalogReader(t *testing.T) {
	ctx := context.Background()
	maxStudents := 2
	cat := NewCatalogReader(course.Course{
		ID:           "c1",
		Status:       course.StatusPublished,
		MaxStudents:  &maxStudents,
		InstructorID: "i1",
		Modules: []course.Module{
			{ID: "m1", LessonIDs: []string{"l1", "l2"}},
			{ID: "m2", LessonIDs: []string{"l3"}},
		},
	})

	exists, err := cat.CourseExists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = cat.CourseExists(ctx, "lol")
	require.NoError(t, err)
	assert.False(t, exists)

	capacity, err := cat.GetCourseCapacity(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, capacity.IsPublished())
	assert.Equal(t, 2, *capacity.MaxStudents)

	modules, err := cat.GetCourseLessonIDs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2", "l3"}, course.LessonIDs(modules))

	// returned modules are copies
	modules[0].LessonIDs[0] = "changed"
	modules, err = cat.GetCourseLessonIDs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "l1", modules[0].LessonIDs[0])

	instructorID, err := cat.GetCourseInstructor(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "i1", instructorID)

	_, err = cat.GetCourseCapacity(ctx, "lol")
	assert.Equal(t, course.ErrNotFound, err)
	_, err = cat.GetCourseLessonIDs(ctx, "lol")
	assert.Equal(t, course.ErrNotFound, err)

	cat.RemoveCourse("c1")
	_, err = cat.GetCourseInstructor(ctx, "c1")
	assert.Equal(t, course.ErrNotFound, err)
}
