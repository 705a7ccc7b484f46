package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/core/enrollment"
	logsvc "github.com/masomo/lms/services/logger"
	"github.com/masomo/lms/storage/database"
)

// OpenDB opens a migrated sqlite3 database living in the test's temp dir.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

func NewConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		AppName:   "Masomo",
		SecretKey: "secret",
		Server: core.ServerConfig{
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: 10 * time.Minute,
		},
		Database: core.DatabaseConfig{Engine: "sqlite3"},
	}
}

// NewLogger returns a silent logger.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom tag registered, and the translator of its messages.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate, translator
}

func IntPtr(i int) *int {
	return &i
}

// NewCourse builds a course with one module per entry of lessonsPerModule.
// Ids are derived from id: "<id>-m1", "<id>-l1", ...
func NewCourse(id, instructorID string, status course.Status, maxStudents *int, lessonsPerModule ...int) course.Course {
	c := course.Course{
		ID:           id,
		Title:        "Course " + id,
		Status:       status,
		MaxStudents:  maxStudents,
		InstructorID: instructorID,
	}
	var lessonNo int
	for i, n := range lessonsPerModule {
		m := course.Module{ID: fmt.Sprintf("%s-m%d", id, i+1), LessonIDs: []string{}}
		for j := 0; j < n; j++ {
			lessonNo++
			m.LessonIDs = append(m.LessonIDs, fmt.Sprintf("%s-l%d", id, lessonNo))
		}
		c.Modules = append(c.Modules, m)
	}
	return c
}

// CreateCourse writes the course structure into the catalog tables.
func CreateCourse(t *testing.T, exec core.DBExecutor, c course.Course) course.Course {
	t.Helper()
	now := time.Now().UTC()
	mustExec := func(q string, args ...interface{}) {
		if _, err := exec.ExecContext(context.Background(), exec.Rebind(q), args...); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}

	var maxStudents interface{}
	if c.MaxStudents != nil {
		maxStudents = *c.MaxStudents
	}
	mustExec(
		"INSERT INTO courses (id, title, status, max_students, instructor_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.Title, string(c.Status), maxStudents, c.InstructorID, now, now,
	)
	for i, m := range c.Modules {
		mustExec("INSERT INTO course_modules (id, course_id, title, position) VALUES (?, ?, ?, ?)", m.ID, c.ID, m.ID, i)
		for j, l := range m.LessonIDs {
			mustExec("INSERT INTO lessons (id, module_id, title, position) VALUES (?, ?, ?, ?)", l, m.ID, l, j)
		}
	}
	return c
}
