package enrollment

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the stable, machine-readable identifier of a business failure.
type Kind string

const (
	KindCourseNotFound      Kind = "CourseNotFound"
	KindEnrollmentNotFound  Kind = "EnrollmentNotFound"
	KindLessonNotInCourse   Kind = "LessonNotInCourse"
	KindCourseNotAvailable  Kind = "CourseNotAvailable"
	KindCourseFull          Kind = "CourseFull"
	KindDuplicateEnrollment Kind = "DuplicateEnrollment"
	KindInvalidTransition   Kind = "InvalidTransition"
	KindForbidden           Kind = "Forbidden"
	KindEnrollmentNotActive Kind = "EnrollmentNotActive"
)

// Error is a recoverable business-rule failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is matches any Error of the same Kind, so errors.Is(err, ErrInvalidTransition) holds for every from/to pair.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrCourseNotFound      = &Error{Kind: KindCourseNotFound, Msg: "course not found"}
	ErrEnrollmentNotFound  = &Error{Kind: KindEnrollmentNotFound, Msg: "enrollment not found"}
	ErrLessonNotInCourse   = &Error{Kind: KindLessonNotInCourse, Msg: "lesson not found in this course"}
	ErrCourseNotAvailable  = &Error{Kind: KindCourseNotAvailable, Msg: "course is not available for enrollment"}
	ErrCourseFull          = &Error{Kind: KindCourseFull, Msg: "course is full"}
	ErrDuplicateEnrollment = &Error{Kind: KindDuplicateEnrollment, Msg: "already enrolled in this course"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Msg: "invalid status transition"}
	ErrForbidden           = &Error{Kind: KindForbidden, Msg: "permission denied"}
	ErrEnrollmentNotActive = &Error{Kind: KindEnrollmentNotActive, Msg: "cannot update progress for inactive enrollment"}
)

func NewInvalidTransitionError(from, to Status) error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// AsError extracts the business Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
