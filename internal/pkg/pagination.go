package pkg

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/pagination"
	"gorm.io/gorm"

	"github.com/simp-lee/layover/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100

	likeSuffix = "__like"
)

// identifier guards column names that end up in SQL text.
var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParsePageRequest reads page, page_size and sort from the query string.
// Every other non-empty parameter becomes a filter. defaultSort has the
// form "field:dir".
func ParsePageRequest(c *gin.Context, defaultSort string) domain.PageRequest {
	query := c.Request.URL.Query()

	req := domain.PageRequest{
		Page:     queryInt(query.Get("page"), defaultPage),
		PageSize: min(queryInt(query.Get("page_size"), defaultPageSize), maxPageSize),
		Sort:     c.DefaultQuery("sort", defaultSort),
		Filter:   make(map[string]string),
	}

	for key, values := range query {
		switch key {
		case "page", "page_size", "sort":
			continue
		}
		if len(values) > 0 && values[0] != "" {
			req.Filter[key] = values[0]
		}
	}
	return req
}

// queryInt parses a positive integer, returning def for anything else.
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Paginate is a scope applying the request's LIMIT and OFFSET.
func Paginate(req domain.PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize)
	}
}

// Sort is a scope ordering by req.Sort when its field is in allowed and its
// direction is asc or desc. Anything else leaves the query unordered.
func Sort(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if clause, ok := orderClause(req.Sort, allowed); ok {
			return db.Order(clause)
		}
		return db
	}
}

func orderClause(sort string, allowed []string) (string, bool) {
	field, dir, ok := strings.Cut(sort, ":")
	if !ok {
		return "", false
	}
	field = strings.TrimSpace(field)
	dir = strings.ToLower(strings.TrimSpace(dir))
	if (dir != "asc" && dir != "desc") || !permitted(field, allowed) {
		return "", false
	}
	return field + " " + dir, true
}

// Filter is a scope adding one WHERE condition per allowed filter key.
// "field__like" matches a substring; a bare field matches exactly.
func Filter(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range req.Filter {
			field, like := strings.CutSuffix(key, likeSuffix)
			switch {
			case !permitted(field, allowed):
			case like:
				db = db.Where(field+" LIKE ?", "%"+value+"%")
			default:
				db = db.Where(field+" = ?", value)
			}
		}
		return db
	}
}

func permitted(field string, allowed []string) bool {
	return identifier.MatchString(field) && slices.Contains(allowed, field)
}

// Page wraps items as page req of total results. Nil items are returned
// as an empty list.
func Page[T any](items []T, total int64, req domain.PageRequest) *pagination.Pagination[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.PageSize > 0 {
		totalPages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}
	return &pagination.Pagination[T]{
		Items:        items,
		TotalItems:   total,
		CurrentPage:  req.Page,
		ItemsPerPage: req.PageSize,
		TotalPages:   totalPages,
	}
}
