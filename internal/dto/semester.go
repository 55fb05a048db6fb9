package dto

// SemesterRequest is the POST /semesters payload.
type SemesterRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	IsActive  bool   `json:"isActive"`
}

// SemesterQuery captures GET /semesters filters.
type SemesterQuery struct {
	Active    *bool  `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"limit"`
	SortBy    string `form:"sort"`
	SortOrder string `form:"order"`
}
