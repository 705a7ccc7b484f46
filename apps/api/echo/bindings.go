package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masomo/lms/core"
)

var errInvalidOrdering = errors.New("invalid ordering")

var orderingParam = "ordering"

// Ordering is bound from `?ordering=field,-other`; a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the ordering query param; fields outside of allowed (any field when none given)
// are reported as a *core.ValidationError.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	seen := make(map[string]bool)
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" || seen[field] {
			continue
		}
		if !isAllowed(field, allowed) {
			return core.NewValidationError(errInvalidOrdering, core.FieldError{
				Field: orderingParam,
				Error: fmt.Sprintf("%q: unknown field", field),
			})
		}
		seen[field] = true
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func isAllowed(field string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}
