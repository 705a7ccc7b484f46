package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/core/course"
	"github.com/masomo/lms/core/progress"
	"github.com/masomo/lms/core/user"
)

type Service interface {
	Enroll(ctx context.Context, actor user.Actor, ne NewEnrollment) (Enrollment, error)
	GetByID(ctx context.Context, actor user.Actor, id string) (Enrollment, error)
	Query(ctx context.Context, actor user.Actor, filter QueryFilter, ordering []core.DBOrdering) (Page, error)
	UpdateStatus(ctx context.Context, actor user.Actor, id string, su StatusUpdate) (Enrollment, error)
	Drop(ctx context.Context, actor user.Actor, id string) (Enrollment, error)
	Remove(ctx context.Context, actor user.Actor, id string) error
	MarkLessonComplete(ctx context.Context, actor user.Actor, id string, lc LessonCompletion) (progress.Summary, error)
	GetProgress(ctx context.Context, actor user.Actor, id string) (progress.Summary, error)
	GetStudentCourseProgress(ctx context.Context, actor user.Actor, studentID, courseID string) (StudentProgress, error)
	Recalculate(ctx context.Context, actor user.Actor, id string) (progress.Summary, error)
	RecalculateCourse(ctx context.Context, actor user.Actor, courseID string) (int, error)
	StudentStats(ctx context.Context, actor user.Actor, studentID string) (Stats, error)
	CourseStats(ctx context.Context, actor user.Actor, courseID string) (Stats, error)
}

type service struct {
	db           core.DB
	repo         Repository
	progressRepo progress.Repository
	catalog      course.Reader
	logger       core.Logger
}

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	progressRepo progress.Repository,
	catalog course.Reader,
	logger core.Logger,
) *service {
	return &service{
		db:           db,
		repo:         repo,
		progressRepo: progressRepo,
		catalog:      catalog,
		logger:       logger,
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// Authorization

func (svc *service) isCourseInstructor(ctx context.Context, actor user.Actor, courseID string) (bool, error) {
	if !actor.IsInstructor() {
		return false, nil
	}
	instructorID, err := svc.catalog.GetCourseInstructor(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting course instructor")
	}
	return actor.IsOwner(instructorID), nil
}

// authorizeRead allows the enrollment's student, administrators and the course instructor.
func (svc *service) authorizeRead(ctx context.Context, actor user.Actor, studentID, courseID string) error {
	if actor.IsOwnerOrAdmin(studentID) {
		return nil
	}
	ok, err := svc.isCourseInstructor(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// authorizeManage allows administrators and the course instructor.
func (svc *service) authorizeManage(ctx context.Context, actor user.Actor, courseID string) error {
	if actor.IsAdministrative() {
		return nil
	}
	ok, err := svc.isCourseInstructor(ctx, actor, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// Lifecycle

func (svc *service) Enroll(ctx context.Context, actor user.Actor, ne NewEnrollment) (Enrollment, error) {
	studentID := ne.StudentID
	if studentID == "" {
		studentID = actor.UserID
	}
	if !actor.IsOwnerOrAdmin(studentID) {
		return Enrollment{}, ErrForbidden
	}

	capacity, err := svc.catalog.GetCourseCapacity(ctx, ne.CourseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return Enrollment{}, ErrCourseNotFound
		}
		return Enrollment{}, errors.Wrap(err, "getting course capacity")
	}
	if !capacity.IsPublished() {
		return Enrollment{}, ErrCourseNotAvailable
	}

	// pre-check; CreateEnrollment re-checks atomically
	_, err = svc.repo.GetEnrollment(ctx, GetFilter{StudentID: studentID, CourseID: ne.CourseID})
	switch {
	case err == nil:
		return Enrollment{}, ErrDuplicateEnrollment
	case !errors.Is(err, ErrEnrollmentNotFound):
		return Enrollment{}, errors.Wrap(err, "checking existing enrollment")
	}

	// capacity is checked outside of the creation transaction: concurrent signups
	// at the boundary may overbook by the number of racing requests.
	if capacity.MaxStudents != nil {
		active, err := svc.repo.CountByCourse(ctx, ne.CourseID, []Status{StatusActive})
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "counting active enrollments")
		}
		if capacity.IsFull(active) {
			return Enrollment{}, ErrCourseFull
		}
	}

	enr, err := svc.repo.CreateEnrollment(ctx, studentID, ne.CourseID, now())
	if err != nil {
		if _, ok := AsError(err); ok {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.logger.Info("enrollment created", map[string]interface{}{"enrollment": enr.ID, "student": studentID, "course": ne.CourseID}, actor)
	return enr, nil
}

func (svc *service) GetByID(ctx context.Context, actor user.Actor, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.authorizeRead(ctx, actor, enr.StudentID, enr.CourseID); err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

func (svc *service) Query(ctx context.Context, actor user.Actor, filter QueryFilter, ordering []core.DBOrdering) (Page, error) {
	filter.Clean()
	// non-admins only see their own enrollments, instructors also those of a course they teach
	if !actor.IsAdministrative() {
		teaches := false
		if filter.CourseID != "" {
			var err error
			if teaches, err = svc.isCourseInstructor(ctx, actor, filter.CourseID); err != nil {
				return Page{}, err
			}
		}
		if !teaches {
			filter.StudentID = actor.UserID
		}
	}

	var ords []core.DBOrdering
	for _, ord := range ordering {
		for _, fld := range OrderingFields {
			if ord.Field == fld {
				ords = append(ords, ord)
				break
			}
		}
	}
	if len(ords) == 0 {
		ords = []core.DBOrdering{{Field: "enrolled_at"}}
	}

	enrs, total, err := svc.repo.QueryEnrollments(ctx, filter, ords)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []Enrollment{}
	}
	return Page{
		Enrollments: enrs,
		Total:       total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (svc *service) UpdateStatus(ctx context.Context, actor user.Actor, id string, su StatusUpdate) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return Enrollment{}, err
	}
	if !actor.IsOwnerOrAdmin(enr.StudentID) {
		return Enrollment{}, ErrForbidden
	}
	// owners may only drop, whatever the graph allows
	if !actor.IsAdministrative() && su.Status != StatusDropped {
		return Enrollment{}, ErrForbidden
	}

	updated, err := svc.repo.UpdateStatus(ctx, id, su.Status, now())
	if err != nil {
		if _, ok := AsError(err); ok {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "updating enrollment status")
	}
	svc.logger.Info("enrollment status changed", map[string]interface{}{"enrollment": id, "from": enr.Status, "to": updated.Status}, actor)
	return updated, nil
}

func (svc *service) Drop(ctx context.Context, actor user.Actor, id string) (Enrollment, error) {
	return svc.UpdateStatus(ctx, actor, id, StatusUpdate{Status: StatusDropped})
}

func (svc *service) Remove(ctx context.Context, actor user.Actor, id string) error {
	if !actor.IsAdministrative() {
		return ErrForbidden
	}
	if err := svc.repo.SoftDelete(ctx, id, now()); err != nil {
		if _, ok := AsError(err); ok {
			return err
		}
		return errors.Wrap(err, "removing enrollment")
	}
	svc.logger.Info("enrollment removed", map[string]interface{}{"enrollment": id}, actor)
	return nil
}

// Progress

func (svc *service) courseLessonIDs(ctx context.Context, courseID string) ([]string, []course.Module, error) {
	modules, err := svc.catalog.GetCourseLessonIDs(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, nil, ErrCourseNotFound
		}
		return nil, nil, errors.Wrap(err, "getting course lessons")
	}
	return course.LessonIDs(modules), modules, nil
}

// recompute derives the progress from the persisted completions and stores it; exec must hold the enrollment lock.
func (svc *service) recompute(ctx context.Context, enr Enrollment, lessonIDs []string, exec core.DBExecutor) (progress.Summary, Enrollment, error) {
	var completed int
	if len(lessonIDs) > 0 {
		var err error
		completed, err = svc.progressRepo.CountCompleted(ctx, enr.ID, lessonIDs, exec)
		if err != nil {
			return progress.Summary{}, Enrollment{}, errors.Wrap(err, "counting completed lessons")
		}
	}
	summary := progress.NewSummary(enr.ID, len(lessonIDs), completed)

	updated, err := svc.repo.UpdateProgress(ctx, enr.ID, summary.Progress, now(), exec)
	if err != nil {
		return progress.Summary{}, Enrollment{}, errors.Wrap(err, "updating enrollment progress")
	}
	return summary, updated, nil
}

func (svc *service) MarkLessonComplete(ctx context.Context, actor user.Actor, id string, lc LessonCompletion) (progress.Summary, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return progress.Summary{}, err
	}
	if !actor.IsOwnerOrAdmin(enr.StudentID) {
		return progress.Summary{}, ErrForbidden
	}

	lessonIDs, modules, err := svc.courseLessonIDs(ctx, enr.CourseID)
	if err != nil {
		return progress.Summary{}, err
	}
	if !course.ContainsLesson(modules, lc.LessonID) {
		return progress.Summary{}, ErrLessonNotInCourse
	}
	if !enr.Status.AcceptsProgress() {
		return progress.Summary{}, ErrEnrollmentNotActive
	}

	var summary progress.Summary
	var updated Enrollment
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		locked, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id, ForUpdate: true}, exec)
		if err != nil {
			return err
		}
		if !locked.Status.AcceptsProgress() {
			return ErrEnrollmentNotActive
		}
		enr = locked

		at := now()
		_, err = svc.progressRepo.MarkComplete(ctx, progress.Completion{
			EnrollmentID: id,
			LessonID:     lc.LessonID,
			StudentID:    enr.StudentID,
			TimeSpent:    lc.TimeSpent,
			At:           at,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "marking lesson complete")
		}

		summary, updated, err = svc.recompute(ctx, enr, lessonIDs, exec)
		return err
	})
	if err != nil {
		return progress.Summary{}, err
	}

	if enr.Status == StatusActive && updated.Status == StatusCompleted {
		svc.logger.Info("enrollment completed", map[string]interface{}{"enrollment": id}, actor)
	}
	return summary, nil
}

func (svc *service) summary(ctx context.Context, enr Enrollment) (progress.Summary, error) {
	lessonIDs, _, err := svc.courseLessonIDs(ctx, enr.CourseID)
	if err != nil {
		return progress.Summary{}, err
	}
	var completed int
	if len(lessonIDs) > 0 {
		completed, err = svc.progressRepo.CountCompleted(ctx, enr.ID, lessonIDs)
		if err != nil {
			return progress.Summary{}, errors.Wrap(err, "counting completed lessons")
		}
	}
	lessons, err := svc.progressRepo.QueryByEnrollment(ctx, enr.ID)
	if err != nil {
		return progress.Summary{}, errors.Wrap(err, "querying lesson progress")
	}

	summary := progress.NewSummary(enr.ID, len(lessonIDs), completed)
	summary.Lessons = lessons
	return summary, nil
}

func (svc *service) GetProgress(ctx context.Context, actor user.Actor, id string) (progress.Summary, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return progress.Summary{}, err
	}
	if err = svc.authorizeRead(ctx, actor, enr.StudentID, enr.CourseID); err != nil {
		return progress.Summary{}, err
	}
	return svc.summary(ctx, enr)
}

func (svc *service) GetStudentCourseProgress(ctx context.Context, actor user.Actor, studentID, courseID string) (StudentProgress, error) {
	if err := svc.authorizeRead(ctx, actor, studentID, courseID); err != nil {
		return StudentProgress{}, err
	}
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{StudentID: studentID, CourseID: courseID})
	if err != nil {
		return StudentProgress{}, err
	}
	summary, err := svc.summary(ctx, enr)
	if err != nil {
		return StudentProgress{}, err
	}
	enr.Progress = summary.Progress
	return StudentProgress{Enrollment: enr, Summary: summary}, nil
}

func (svc *service) Recalculate(ctx context.Context, actor user.Actor, id string) (progress.Summary, error) {
	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		return progress.Summary{}, err
	}
	if err = svc.authorizeManage(ctx, actor, enr.CourseID); err != nil {
		return progress.Summary{}, err
	}

	lessonIDs, _, err := svc.courseLessonIDs(ctx, enr.CourseID)
	if err != nil {
		return progress.Summary{}, err
	}

	var summary progress.Summary
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		locked, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id, ForUpdate: true}, exec)
		if err != nil {
			return err
		}
		summary, _, err = svc.recompute(ctx, locked, lessonIDs, exec)
		return err
	})
	if err != nil {
		return progress.Summary{}, err
	}

	if summary.Progress != enr.Progress {
		svc.logger.Info("enrollment progress recalculated", map[string]interface{}{"enrollment": id, "from": enr.Progress, "to": summary.Progress}, actor)
	}
	return summary, nil
}

// RecalculateCourse recalculates every live enrollment of the course and returns how many were processed.
func (svc *service) RecalculateCourse(ctx context.Context, actor user.Actor, courseID string) (int, error) {
	if err := svc.authorizeManage(ctx, actor, courseID); err != nil {
		return 0, err
	}
	exists, err := svc.catalog.CourseExists(ctx, courseID)
	if err != nil {
		return 0, errors.Wrap(err, "checking course")
	}
	if !exists {
		return 0, ErrCourseNotFound
	}

	var ids []string
	filter := QueryFilter{CourseID: courseID, Page: 1, Limit: MaxPageSize}
	for {
		enrs, total, err := svc.repo.QueryEnrollments(ctx, filter, []core.DBOrdering{{Field: "enrolled_at", Ascending: true}})
		if err != nil {
			return 0, errors.Wrap(err, "querying enrollments")
		}
		for _, enr := range enrs {
			ids = append(ids, enr.ID)
		}
		if len(enrs) == 0 || filter.Page*filter.Limit >= total {
			break
		}
		filter.Page++
	}

	for _, id := range ids {
		if _, err = svc.Recalculate(ctx, actor, id); err != nil {
			return 0, errors.Wrapf(err, "recalculating enrollment %s", id)
		}
	}
	return len(ids), nil
}

// Stats

func (svc *service) stats(ctx context.Context, count func(ctx context.Context, statuses []Status) (int, error)) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range []struct {
		dst      *int
		statuses []Status
	}{
		{&stats.Total, nil},
		{&stats.Active, []Status{StatusActive}},
		{&stats.Completed, []Status{StatusCompleted}},
		{&stats.Dropped, []Status{StatusDropped}},
	} {
		c := c
		g.Go(func() error {
			n, err := count(gctx, c.statuses)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, errors.Wrap(err, "counting enrollments")
	}
	return stats, nil
}

func (svc *service) StudentStats(ctx context.Context, actor user.Actor, studentID string) (Stats, error) {
	if !actor.IsOwnerOrAdmin(studentID) {
		return Stats{}, ErrForbidden
	}
	return svc.stats(ctx, func(ctx context.Context, statuses []Status) (int, error) {
		return svc.repo.CountByStudent(ctx, studentID, statuses)
	})
}

func (svc *service) CourseStats(ctx context.Context, actor user.Actor, courseID string) (Stats, error) {
	exists, err := svc.catalog.CourseExists(ctx, courseID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "checking course")
	}
	if !exists {
		return Stats{}, ErrCourseNotFound
	}
	if err = svc.authorizeManage(ctx, actor, courseID); err != nil {
		return Stats{}, err
	}
	return svc.stats(ctx, func(ctx context.Context, statuses []Status) (int, error) {
		return svc.repo.CountByCourse(ctx, courseID, statuses)
	})
}
