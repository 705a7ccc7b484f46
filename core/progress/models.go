package progress

import (
	"context"
	"time"

	"github.com/masomo/lms/core"
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// LessonProgress is the completion record of one lesson within one enrollment.
type LessonProgress struct {
	ID             string     `json:"id"`
	EnrollmentID   string     `json:"enrollment_id"`
	LessonID       string     `json:"lesson_id"`
	StudentID      string     `json:"student_id"`
	Status         Status     `json:"status"`
	TimeSpent      int        `json:"time_spent"` // seconds
	CompletedAt    *time.Time `json:"completed_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Completion describes one "lesson completed" event.
type Completion struct {
	EnrollmentID string
	LessonID     string
	StudentID    string
	TimeSpent    *int // nil: keep the stored value
	At           time.Time
}

// Repository is the Lesson-Completion Store.
type Repository interface {
	// MarkComplete upserts the (enrollment, lesson) record as COMPLETED; repeating it never fails.
	MarkComplete(ctx context.Context, c Completion, exec ...core.DBExecutor) (LessonProgress, error)
	// CountCompleted counts COMPLETED records of the enrollment, restricted to lessonIDs when given.
	CountCompleted(ctx context.Context, enrollmentID string, lessonIDs []string, exec ...core.DBExecutor) (int, error)
	QueryByEnrollment(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]LessonProgress, error)
}
