package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLessonIDs(t *testing.T) {
	modules := []Module{
		{ID: "m1", LessonIDs: []string{"l1", "l2"}},
		{ID: "m2"},
		{ID: "m3", LessonIDs: []string{"l3"}},
	}
	assert.Equal(t, []string{"l1", "l2", "l3"}, LessonIDs(modules))
	assert.Empty(t, LessonIDs(nil))

	assert.True(t, ContainsLesson(modules, "l3"))
	assert.False(t, ContainsLesson(modules, "m1"))
}

func TestCapacity(t *testing.T) {
	one := 1
	tests := []struct {
		name     string
		capacity Capacity
		active   int
		wantFull bool
	}{
		{name: "unlimited", capacity: Capacity{Status: StatusPublished}, active: 1000},
		{name: "below", capacity: Capacity{Status: StatusPublished, MaxStudents: &one}, active: 0},
		{name: "at capacity", capacity: Capacity{Status: StatusPublished, MaxStudents: &one}, active: 1, wantFull: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantFull, tt.capacity.IsFull(tt.active))
		})
	}
	assert.False(t, Capacity{Status: StatusDraft}.IsPublished())
}
