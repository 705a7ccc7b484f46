package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/masomo/lms/core/user"
)

// recalculate runs as the system actor: no ownership checks apply.
func (cli *commandLine) recalculate(enrollmentID, courseID string) error {
	ctx := context.Background()

	if enrollmentID != "" {
		summary, err := cli.enrollmentSvc.Recalculate(ctx, user.System, enrollmentID)
		if err != nil {
			return errors.Wrap(err, "recalculating enrollment")
		}
		fmt.Fprintf(cli.out, "enrollment %s: %d/%d lessons completed, %d%%\n",
			enrollmentID, summary.CompletedLessons, summary.TotalLessons, summary.Progress)
		return nil
	}

	n, err := cli.enrollmentSvc.RecalculateCourse(ctx, user.System, courseID)
	if err != nil {
		return errors.Wrap(err, "recalculating course")
	}
	fmt.Fprintf(cli.out, "course %s: %d enrollments recalculated\n", courseID, n)
	return nil
}
