package models

import (
	"time"

	"github.com/noah-isme/portal-api/internal/timeline"
)

// Semester bounds a teaching period; schedule queries may be scoped to one.
type Semester struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Range reduces the semester to its calendar dates in loc.
func (s Semester) Range(loc *time.Location) timeline.DateRange {
	return timeline.NewDateRange(s.StartDate, s.EndDate, loc)
}

// SemesterFilter defines filters supported by list endpoints.
type SemesterFilter struct {
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
