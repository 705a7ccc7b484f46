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
	"github.com/masomo/lms/core/enrollment"
	"github.com/masomo/lms/storage/database"
)

var enrollmentColumns = []string{
	"id", "student_id", "course_id", "status", "progress",
	"enrolled_at", "started_at", "completed_at", "last_accessed_at",
	"created_at", "updated_at", "deleted_at",
}

type enrollmentRow struct {
	ID             string    `db:"id"`
	StudentID      string    `db:"student_id"`
	CourseID       string    `db:"course_id"`
	Status         string    `db:"status"`
	Progress       int       `db:"progress"`
	EnrolledAt     time.Time `db:"enrolled_at"`
	StartedAt      null.Time `db:"started_at"`
	CompletedAt    null.Time `db:"completed_at"`
	LastAccessedAt null.Time `db:"last_accessed_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	DeletedAt      null.Time `db:"deleted_at"`
}

type enrollmentRepository struct {
	db core.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db core.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) unboil(row enrollmentRow) enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:             row.ID,
		StudentID:      row.StudentID,
		CourseID:       row.CourseID,
		Status:         enrollment.Status(row.Status),
		Progress:       row.Progress,
		EnrolledAt:     row.EnrolledAt.UTC(),
		StartedAt:      utcPtr(row.StartedAt),
		CompletedAt:    utcPtr(row.CompletedAt),
		LastAccessedAt: utcPtr(row.LastAccessedAt),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		DeletedAt:      utcPtr(row.DeletedAt),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// trapNoRowsErr maps "no rows" err to enrollment.ErrEnrollmentNotFound
func (repo enrollmentRepository) trapNoRowsErr(err error, msg string) error {
	if database.IsNoRows(err) {
		return enrollment.ErrEnrollmentNotFound
	}
	return errors.Wrap(core.TrapClosedDB(err), msg)
}

func (repo enrollmentRepository) getRow(ctx context.Context, exe core.DBExecutor, filter enrollment.GetFilter) (enrollmentRow, error) {
	q := "SELECT " + strings.Join(enrollmentColumns, ", ") + " FROM enrollments WHERE deleted_at IS NULL"
	var args []interface{}
	switch {
	case filter.ID != "":
		q += " AND id = ?"
		args = append(args, filter.ID)
	case filter.StudentID != "" && filter.CourseID != "":
		q += " AND student_id = ? AND course_id = ?"
		args = append(args, filter.StudentID, filter.CourseID)
	default:
		return enrollmentRow{}, enrollment.ErrEnrollmentNotFound
	}
	// sqlite3 transactions already hold the database write lock
	if filter.ForUpdate && isPostgres(exe) {
		q += " FOR UPDATE"
	}

	var row enrollmentRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), args...); err != nil {
		return enrollmentRow{}, repo.trapNoRowsErr(err, "finding enrollment")
	}
	return row, nil
}

func (repo enrollmentRepository) update(ctx context.Context, exe core.DBExecutor, row enrollmentRow, cols ...string) error {
	q, args, err := exe.BindNamed("UPDATE enrollments SET "+namedSet(cols)+" WHERE id = :id", row)
	if err != nil {
		return errors.Wrap(err, "binding enrollment update")
	}
	if _, err = exe.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return nil
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, studentID, courseID string, enrolledAt time.Time, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	at := enrolledAt.UTC()
	row := enrollmentRow{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     string(enrollment.StatusActive),
		Progress:   0,
		EnrolledAt: at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}

	err := inTx(ctx, repo.db, exec, func(exe core.DBExecutor) error {
		_, err := repo.getRow(ctx, exe, enrollment.GetFilter{StudentID: studentID, CourseID: courseID})
		switch {
		case err == nil:
			return enrollment.ErrDuplicateEnrollment
		case !errors.Is(err, enrollment.ErrEnrollmentNotFound):
			return err
		}

		q, args, err := exe.BindNamed(
			"INSERT INTO enrollments ("+strings.Join(enrollmentColumns, ", ")+") VALUES ("+namedValues(enrollmentColumns)+")",
			row,
		)
		if err != nil {
			return errors.Wrap(err, "binding enrollment insert")
		}
		if _, err = exe.ExecContext(ctx, q, args...); err != nil {
			// a concurrent transaction committed the same pair first
			if database.IsUniqueViolation(err) {
				return enrollment.ErrDuplicateEnrollment
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return enrollment.Enrollment{}, enrollment.ErrDuplicateEnrollment
		}
		return enrollment.Enrollment{}, err
	}
	return repo.unboil(row), nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	row, err := repo.getRow(ctx, getExec(repo.db, exec), filter)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return repo.unboil(row), nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]enrollment.Enrollment, int, error) {
	exe := getExec(repo.db, exec)

	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := sqlx.GetContext(ctx, exe, &total, exe.Rebind("SELECT COUNT(*) FROM enrollments"+whereSQL), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting enrollments")
	}

	q := "SELECT " + strings.Join(enrollmentColumns, ", ") + " FROM enrollments" + whereSQL +
		orderBy(ordering, enrollment.OrderingFields...)
	if filter.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset())
	}

	var rows []enrollmentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, repo.unboil(row))
	}
	return enrs, total, nil
}

func (repo enrollmentRepository) countBy(ctx context.Context, column, value string, statuses []enrollment.Status, exec []core.DBExecutor) (int, error) {
	exe := getExec(repo.db, exec)

	q := "SELECT COUNT(*) FROM enrollments WHERE deleted_at IS NULL AND " + column + " = ?"
	args := []interface{}{value}
	if len(statuses) > 0 {
		sts := make([]string, 0, len(statuses))
		for _, st := range statuses {
			sts = append(sts, string(st))
		}
		var err error
		q, args, err = sqlx.In(q+" AND status IN (?)", value, sts)
		if err != nil {
			return 0, errors.Wrap(err, "expanding statuses")
		}
	}

	var n int
	if err := sqlx.GetContext(ctx, exe, &n, exe.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

func (repo enrollmentRepository) CountByCourse(ctx context.Context, courseID string, statuses []enrollment.Status, exec ...core.DBExecutor) (int, error) {
	return repo.countBy(ctx, "course_id", courseID, statuses, exec)
}

func (repo enrollmentRepository) CountByStudent(ctx context.Context, studentID string, statuses []enrollment.Status, exec ...core.DBExecutor) (int, error) {
	return repo.countBy(ctx, "student_id", studentID, statuses, exec)
}

func (repo enrollmentRepository) UpdateStatus(ctx context.Context, id string, to enrollment.Status, at time.Time, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	at = at.UTC()
	var row enrollmentRow
	err := inTx(ctx, repo.db, exec, func(exe core.DBExecutor) error {
		var err error
		row, err = repo.getRow(ctx, exe, enrollment.GetFilter{ID: id, ForUpdate: true})
		if err != nil {
			return err
		}
		if err = enrollment.ValidateTransition(enrollment.Status(row.Status), to); err != nil {
			return err
		}

		row.Status = string(to)
		row.UpdatedAt = at
		if to == enrollment.StatusCompleted {
			row.Progress = 100
			if !row.StartedAt.Valid {
				row.StartedAt = null.TimeFrom(at)
			}
			if !row.CompletedAt.Valid {
				row.CompletedAt = null.TimeFrom(at)
			}
		}
		return repo.update(ctx, exe, row, "status", "progress", "started_at", "completed_at", "updated_at")
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return repo.unboil(row), nil
}

func (repo enrollmentRepository) UpdateProgress(ctx context.Context, id string, percentage int, at time.Time, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	if percentage < 0 {
		percentage = 0
	} else if percentage > 100 {
		percentage = 100
	}
	at = at.UTC()

	var row enrollmentRow
	err := inTx(ctx, repo.db, exec, func(exe core.DBExecutor) error {
		var err error
		row, err = repo.getRow(ctx, exe, enrollment.GetFilter{ID: id, ForUpdate: true})
		if err != nil {
			return err
		}

		row.Progress = percentage
		row.LastAccessedAt = null.TimeFrom(at)
		row.UpdatedAt = at
		if percentage > 0 && !row.StartedAt.Valid {
			row.StartedAt = null.TimeFrom(at)
		}
		if percentage == 100 {
			if enrollment.Status(row.Status) == enrollment.StatusActive {
				row.Status = string(enrollment.StatusCompleted)
			}
			if !row.CompletedAt.Valid {
				row.CompletedAt = null.TimeFrom(at)
			}
		}
		return repo.update(ctx, exe, row, "status", "progress", "started_at", "completed_at", "last_accessed_at", "updated_at")
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return repo.unboil(row), nil
}

func (repo enrollmentRepository) SoftDelete(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	exe := getExec(repo.db, exec)
	at = at.UTC()
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE enrollments SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL"),
		at, at, id,
	)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n == 0 {
		return enrollment.ErrEnrollmentNotFound
	}
	return nil
}
