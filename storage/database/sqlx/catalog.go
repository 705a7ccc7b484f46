package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/storage/database"
)

// catalogReader reads the course structure maintained by content management.
type catalogReader struct {
	exec core.DBExecutor
}

var _ course.Reader = (*catalogReader)(nil) // interface compliance check

func NewCatalogReader(exec core.DBExecutor) *catalogReader {
	return &catalogReader{exec: exec}
}

// trapNoRowsErr maps "no rows" err to course.ErrNotFound
func (repo catalogReader) trapNoRowsErr(err error, msg string) error {
	if database.IsNoRows(err) {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo catalogReader) CourseExists(ctx context.Context, courseID string) (bool, error) {
	var n int
	q := repo.exec.Rebind("SELECT COUNT(*) FROM courses WHERE id = ? AND deleted_at IS NULL")
	if err := sqlx.GetContext(ctx, repo.exec, &n, q, courseID); err != nil {
		return false, errors.Wrap(err, "checking course")
	}
	return n > 0, nil
}

func (repo catalogReader) GetCourseCapacity(ctx context.Context, courseID string) (course.Capacity, error) {
	var row struct {
		Status      string   `db:"status"`
		MaxStudents null.Int `db:"max_students"`
	}
	q := repo.exec.Rebind("SELECT status, max_students FROM courses WHERE id = ? AND deleted_at IS NULL")
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, courseID); err != nil {
		return course.Capacity{}, repo.trapNoRowsErr(err, "finding course")
	}
	return course.Capacity{
		Status:      course.Status(row.Status),
		MaxStudents: row.MaxStudents.Ptr(),
	}, nil
}

func (repo catalogReader) GetCourseLessonIDs(ctx context.Context, courseID string) ([]course.Module, error) {
	exists, err := repo.CourseExists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, course.ErrNotFound
	}

	var rows []struct {
		ModuleID string      `db:"module_id"`
		LessonID null.String `db:"lesson_id"`
	}
	q := repo.exec.Rebind(`SELECT m.id AS module_id, l.id AS lesson_id
		FROM course_modules m
		LEFT JOIN lessons l ON l.module_id = m.id AND l.deleted_at IS NULL
		WHERE m.course_id = ? AND m.deleted_at IS NULL
		ORDER BY m.position, m.id, l.position, l.id`)
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course lessons")
	}

	var modules []course.Module
	for _, row := range rows {
		if len(modules) == 0 || modules[len(modules)-1].ID != row.ModuleID {
			modules = append(modules, course.Module{ID: row.ModuleID, LessonIDs: []string{}})
		}
		if row.LessonID.Valid {
			last := &modules[len(modules)-1]
			last.LessonIDs = append(last.LessonIDs, row.LessonID.String)
		}
	}
	return modules, nil
}

func (repo catalogReader) GetCourseInstructor(ctx context.Context, courseID string) (string, error) {
	var instructorID string
	q := repo.exec.Rebind("SELECT instructor_id FROM courses WHERE id = ? AND deleted_at IS NULL")
	if err := sqlx.GetContext(ctx, repo.exec, &instructorID, q, courseID); err != nil {
		return "", repo.trapNoRowsErr(err, "finding course instructor")
	}
	return instructorID, nil
}
