package sqlxrepos

import (
	"context"
	"strings"

	"github.com/masomo/lms/core"
)

func getExec(exec core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return exec
}

// inTx runs fn on the caller's exec when one is provided (the caller owns the unit of work),
// in a new transaction otherwise.
func inTx(ctx context.Context, db core.DB, svcExec []core.DBExecutor, fn func(exec core.DBExecutor) error) error {
	if len(svcExec) > 0 {
		return fn(svcExec[0])
	}
	return core.RunInTx(ctx, db, fn)
}

func isPostgres(exec core.DBExecutor) bool {
	return exec.DriverName() == "postgres"
}

// orderBy renders ordering, keeping only the allowed fields.
func orderBy(ordering []core.DBOrdering, allowed ...string) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		for _, fld := range allowed {
			if ord.Field == fld {
				orderList = append(orderList, ord.String())
				break
			}
		}
	}
	orderList = append(orderList, "id ASC") // stable pages
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func namedValues(cols []string) string {
	named := make([]string, 0, len(cols))
	for _, c := range cols {
		named = append(named, ":"+c)
	}
	return strings.Join(named, ", ")
}

func namedSet(cols []string) string {
	set := make([]string, 0, len(cols))
	for _, c := range cols {
		set = append(set, c+" = :"+c)
	}
	return strings.Join(set, ", ")
}
