package sqlxrepos

import (
	"strings"

	"github.com/nageo/backend/core"
)

// orderByClause renders ordering into an ORDER BY clause, falling back to
// fallback when no ordering is provided. Ordering fields may originate from
// request input; anything that is not a plain column name is dropped.
func orderByClause(ordering []core.DBOrdering, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if isColumnName(ord.Field) {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		if fallback == "" {
			return ""
		}
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func isColumnName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')) {
			return false
		}
	}
	return true
}
