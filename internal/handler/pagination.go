package handler

import (
	"net/http"
	"strconv"

	"github.com/trelloplus/bot-server-go/internal/config"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Missing or out of range values
// fall back to the defaults.
func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 {
		limit = config.AdminPageDefaultLimit
	}
	if limit > config.AdminPageMaxLimit {
		limit = config.AdminPageMaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}
