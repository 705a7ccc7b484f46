package course

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Reader when the course does not exist (or was removed).
var ErrNotFound = errors.New("course not found")

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// Capacity is the enrollment-relevant part of a course.
type Capacity struct {
	Status      Status `json:"status"`
	MaxStudents *int   `json:"max_students,omitempty"` // nil: unlimited
}

func (c Capacity) IsPublished() bool {
	return c.Status == StatusPublished
}

// IsFull reports whether `active` enrollments exhaust the capacity.
func (c Capacity) IsFull(active int) bool {
	return c.MaxStudents != nil && active >= *c.MaxStudents
}

// Module groups the ordered lesson ids of a course module.
type Module struct {
	ID        string   `json:"id"`
	LessonIDs []string `json:"lesson_ids"`
}

// Course is the full catalog entry of a course, as authored by content management.
type Course struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       Status   `json:"status"`
	MaxStudents  *int     `json:"max_students,omitempty"`
	InstructorID string   `json:"instructor_id"`
	Modules      []Module `json:"modules"`
}

func (c Course) Capacity() Capacity {
	return Capacity{Status: c.Status, MaxStudents: c.MaxStudents}
}

// Reader is the read-only view of the course catalog.
type Reader interface {
	CourseExists(ctx context.Context, courseID string) (bool, error)
	GetCourseCapacity(ctx context.Context, courseID string) (Capacity, error)
	// GetCourseLessonIDs returns the course modules in order, each with its ordered lesson ids.
	GetCourseLessonIDs(ctx context.Context, courseID string) ([]Module, error)
	// GetCourseInstructor returns the id of the instructor teaching the course.
	GetCourseInstructor(ctx context.Context, courseID string) (string, error)
}

// LessonIDs flattens the modules into the ordered lesson set of the course.
func LessonIDs(modules []Module) []string {
	var n int
	for _, m := range modules {
		n += len(m.LessonIDs)
	}
	ids := make([]string, 0, n)
	for _, m := range modules {
		ids = append(ids, m.LessonIDs...)
	}
	return ids
}

func ContainsLesson(modules []Module, lessonID string) bool {
	for _, m := range modules {
		for _, id := range m.LessonIDs {
			if id == lessonID {
				return true
			}
		}
	}
	return false
}
