package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

// SharedHelpers holds query helpers used by the postgres repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyPaginationAndSort applies ordering and paging; unknown sort columns fall
// back to created_at.
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int, allowed ...string) *gorm.DB {
	column := "created_at"
	for _, a := range allowed {
		if a == sortBy {
			column = sortBy
			break
		}
	}

	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", column, direction))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
