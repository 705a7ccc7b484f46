package inmemdb

import (
	"context"
	"sync"

	"github.com/masomo/lms/core/course"
)

type catalogReader struct {
	mutex   sync.RWMutex
	courses map[string]course.Course
}

var _ course.Reader = (*catalogReader)(nil) // interface compliance check

func NewCatalogReader(courses ...course.Course) *catalogReader {
	cat := &catalogReader{courses: make(map[string]course.Course, len(courses))}
	for _, c := range courses {
		cat.PutCourse(c)
	}
	return cat
}

// PutCourse creates or replaces a course.
func (cat *catalogReader) PutCourse(c course.Course) {
	cat.mutex.Lock()
	defer cat.mutex.Unlock()
	cat.courses[c.ID] = c
}

func (cat *catalogReader) RemoveCourse(courseID string) {
	cat.mutex.Lock()
	defer cat.mutex.Unlock()
	delete(cat.courses, courseID)
}

func (cat *catalogReader) get(courseID string) (course.Course, error) {
	cat.mutex.RLock()
	defer cat.mutex.RUnlock()
	c, ok := cat.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (cat *catalogReader) CourseExists(_ context.Context, courseID string) (bool, error) {
	_, err := cat.get(courseID)
	return err == nil, nil
}

func (cat *catalogReader) GetCourseCapacity(_ context.Context, courseID string) (course.Capacity, error) {
	c, err := cat.get(courseID)
	if err != nil {
		return course.Capacity{}, err
	}
	return c.Capacity(), nil
}

func (cat *catalogReader) GetCourseLessonIDs(_ context.Context, courseID string) ([]course.Module, error) {
	c, err := cat.get(courseID)
	if err != nil {
		return nil, err
	}
	// copy: callers must not alias the stored course
	modules := make([]course.Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		modules = append(modules, course.Module{ID: m.ID, LessonIDs: append([]string{}, m.LessonIDs...)})
	}
	return modules, nil
}

func (cat *catalogReader) GetCourseInstructor(_ context.Context, courseID string) (string, error) {
	c, err := cat.get(courseID)
	if err != nil {
		return "", err
	}
	return c.InstructorID, nil
}
