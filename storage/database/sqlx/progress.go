package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/progress"
)

var lessonProgressColumns = []string{
	"id", "enrollment_id", "lesson_id", "student_id", "status", "time_spent",
	"completed_at", "last_accessed_at", "created_at", "updated_at",
}

type lessonProgressRow struct {
	ID             string    `db:"id"`
	EnrollmentID   string    `db:"enrollment_id"`
	LessonID       string    `db:"lesson_id"`
	StudentID      string    `db:"student_id"`
	Status         string    `db:"status"`
	TimeSpent      int       `db:"time_spent"`
	CompletedAt    null.Time `db:"completed_at"`
	LastAccessedAt null.Time `db:"last_accessed_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// upsert keyed on (enrollment_id, lesson_id); time_spent is overwritten only when a value is supplied
const markCompleteQuery = `INSERT INTO lesson_progress (
	id, enrollment_id, lesson_id, student_id, status, time_spent, completed_at, last_accessed_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, COALESCE(?, 0), ?, ?, ?, ?)
ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
	status = excluded.status,
	completed_at = excluded.completed_at,
	last_accessed_at = excluded.last_accessed_at,
	updated_at = excluded.updated_at,
	time_spent = COALESCE(?, lesson_progress.time_spent)`

type progressRepository struct {
	exec core.DBExecutor
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{exec: exec}
}

func (repo progressRepository) unboil(row lessonProgressRow) progress.LessonProgress {
	return progress.LessonProgress{
		ID:             row.ID,
		EnrollmentID:   row.EnrollmentID,
		LessonID:       row.LessonID,
		StudentID:      row.StudentID,
		Status:         progress.Status(row.Status),
		TimeSpent:      row.TimeSpent,
		CompletedAt:    utcPtr(row.CompletedAt),
		LastAccessedAt: utcPtr(row.LastAccessedAt),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (repo progressRepository) MarkComplete(ctx context.Context, c progress.Completion, exec ...core.DBExecutor) (progress.LessonProgress, error) {
	exe := getExec(repo.exec, exec)
	at := c.At.UTC()
	if c.At.IsZero() {
		at = time.Now().UTC()
	}
	timeSpent := null.IntFromPtr(c.TimeSpent)

	_, err := exe.ExecContext(ctx, exe.Rebind(markCompleteQuery),
		uuid.New().String(), c.EnrollmentID, c.LessonID, c.StudentID, string(progress.StatusCompleted),
		timeSpent, at, at, at, at,
		timeSpent,
	)
	if err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "upserting lesson progress")
	}

	var row lessonProgressRow
	q := "SELECT " + strings.Join(lessonProgressColumns, ", ") + " FROM lesson_progress WHERE enrollment_id = ? AND lesson_id = ?"
	if err = sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), c.EnrollmentID, c.LessonID); err != nil {
		return progress.LessonProgress{}, errors.Wrap(err, "finding lesson progress")
	}
	return repo.unboil(row), nil
}

func (repo progressRepository) CountCompleted(ctx context.Context, enrollmentID string, lessonIDs []string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.exec, exec)

	q := "SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id = ? AND status = ?"
	args := []interface{}{enrollmentID, string(progress.StatusCompleted)}
	if len(lessonIDs) > 0 {
		var err error
		q, args, err = sqlx.In(q+" AND lesson_id IN (?)", enrollmentID, string(progress.StatusCompleted), lessonIDs)
		if err != nil {
			return 0, errors.Wrap(err, "expanding lesson ids")
		}
	}

	var n int
	if err := sqlx.GetContext(ctx, exe, &n, exe.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting completed lessons")
	}
	return n, nil
}

func (repo progressRepository) QueryByEnrollment(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]progress.LessonProgress, error) {
	exe := getExec(repo.exec, exec)

	q := "SELECT " + strings.Join(lessonProgressColumns, ", ") + " FROM lesson_progress WHERE enrollment_id = ? ORDER BY created_at, id"
	var rows []lessonProgressRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), enrollmentID); err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	lps := make([]progress.LessonProgress, 0, len(rows))
	for _, row := range rows {
		lps = append(lps, repo.unboil(row))
	}
	return lps, nil
}
