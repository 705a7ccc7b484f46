package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/progress"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// orderable fields of QueryEnrollments
var OrderingFields = []string{"enrolled_at", "completed_at", "progress"}

type Enrollment struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	CourseID       string     `json:"course_id"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"-"`
}

type (
	// Repository is the Enrollment Store.
	// Mutations run in their own transaction unless an exec is provided.
	Repository interface {
		// CreateEnrollment atomically checks for a live enrollment of the pair and inserts an ACTIVE one.
		CreateEnrollment(ctx context.Context, studentID, courseID string, enrolledAt time.Time, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Enrollment, int, error)
		// CountByCourse counts live enrollments of the course, in any of statuses (all when empty).
		CountByCourse(ctx context.Context, courseID string, statuses []Status, exec ...core.DBExecutor) (int, error)
		CountByStudent(ctx context.Context, studentID string, statuses []Status, exec ...core.DBExecutor) (int, error)
		// UpdateStatus validates the transition against the stored status before writing.
		UpdateStatus(ctx context.Context, id string, to Status, at time.Time, exec ...core.DBExecutor) (Enrollment, error)
		UpdateProgress(ctx context.Context, id string, percentage int, at time.Time, exec ...core.DBExecutor) (Enrollment, error)
		SoftDelete(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	// GetFilter selects one live enrollment, by ID or by (StudentID, CourseID).
	GetFilter struct {
		ID        string
		StudentID string
		CourseID  string
		ForUpdate bool // lock the row until the end of the transaction
	}

	QueryFilter struct {
		Status    Status `query:"status" validate:"omitempty,enrollment_status"`
		CourseID  string `query:"course_id"`
		StudentID string `query:"student_id"`
		Page      int    `query:"page" validate:"omitempty,min=1"`
		Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	}

	// Page is one page of QueryEnrollments results.
	Page struct {
		Enrollments []Enrollment `json:"enrollments"`
		Total       int          `json:"total"`
		Page        int          `json:"page"`
		Limit       int          `json:"limit"`
		TotalPages  int          `json:"total_pages"`
	}

	Stats struct {
		Total     int `json:"total"`
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Dropped   int `json:"dropped"`
	}

	// StudentProgress is an enrollment together with its computed progress.
	StudentProgress struct {
		Enrollment Enrollment `json:"enrollment"`
		progress.Summary
	}
)

func (qf *QueryFilter) Clean() {
	qf.CourseID = core.CleanString(qf.CourseID)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Status = Status(core.CleanString(string(qf.Status)))
	if qf.Page < 1 {
		qf.Page = 1
	}
	if qf.Limit < 1 {
		qf.Limit = DefaultPageSize
	} else if qf.Limit > MaxPageSize {
		qf.Limit = MaxPageSize
	}
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	if err := validate.Struct(qf); err != nil {
		return err
	}
	qf.Clean()
	return nil
}

func (qf QueryFilter) Offset() int {
	return (qf.Page - 1) * qf.Limit
}

// NewEnrollment contains information needed to enroll a student.
type NewEnrollment struct {
	CourseID  string `json:"course_id" validate:"required,notblank"`
	StudentID string `json:"student_id"` // empty: the caller
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	ne.StudentID = core.CleanString(ne.StudentID)
	return validate.Struct(ne)
}

type StatusUpdate struct {
	Status Status `json:"status" validate:"required,enrollment_status"`
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	su.Status = Status(core.CleanString(string(su.Status)))
	return validate.Struct(su)
}

type LessonCompletion struct {
	LessonID  string `json:"lesson_id" validate:"required,notblank"`
	TimeSpent *int   `json:"time_spent" validate:"omitempty,min=0"`
}

func (lc *LessonCompletion) Validate(validate *validator.Validate) error {
	lc.LessonID = core.CleanString(lc.LessonID)
	return validate.Struct(lc)
}
