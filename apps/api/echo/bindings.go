package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nageo/backend/core"
)

const orderingParam = "ordering"

// Ordering collects the sort fields of a list request. The "ordering"
// query param holds comma-separated field names; a "-" prefix sorts the
// field descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		asc := true
		if strings.HasPrefix(field, "-") {
			field = field[1:]
			asc = false
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: asc})
	}
}
