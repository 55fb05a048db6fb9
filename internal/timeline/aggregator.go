package timeline

import (
	"fmt"
	"sort"
	"strings"
)

// GroupByDate buckets occurrences by their normalised local calendar date.
// Each bucket is ordered by start time; ties keep their input order.
func GroupByDate(occurrences []Occurrence) map[string][]Occurrence {
	groups := make(map[string][]Occurrence)
	for _, occ := range occurrences {
		key := occ.DateKey
		if !occ.Date.IsZero() {
			key = occ.Date.Format(DateKeyLayout)
		}
		groups[key] = append(groups[key], occ)
	}
	for key := range groups {
		bucket := groups[key]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].StartTime < bucket[j].StartTime
		})
	}
	return groups
}

// SortedDateKeys returns the keys of a date grouping in ascending order.
func SortedDateKeys(groups map[string][]Occurrence) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// StatusFilter selects one tab of the assignment list.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterSubmitted StatusFilter = "submitted"
	FilterGraded    StatusFilter = "graded"
	FilterOverdue   StatusFilter = "overdue"
	FilterLate      StatusFilter = "late"
)

// ParseStatusFilter maps a query value onto a filter; empty means all.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterSubmitted, FilterGraded, FilterOverdue, FilterLate:
		return f, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", raw)
	}
}

// FilterAssignmentsByStatus keeps the views matching filter, preserving order.
func FilterAssignmentsByStatus(views []AssignmentView, filter StatusFilter) []AssignmentView {
	if filter == "" || filter == FilterAll {
		return append([]AssignmentView(nil), views...)
	}
	out := make([]AssignmentView, 0, len(views))
	for _, v := range views {
		if filter == FilterLate {
			if v.IsLate {
				out = append(out, v)
			}
			continue
		}
		if string(v.Status) == string(filter) {
			out = append(out, v)
		}
	}
	return out
}

// SearchAssignments keeps views whose title, description or course name
// contains query, case-insensitively. A blank query keeps everything.
func SearchAssignments(views []AssignmentView, query string) []AssignmentView {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return append([]AssignmentView(nil), views...)
	}
	out := make([]AssignmentView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.Title), needle) ||
			strings.Contains(strings.ToLower(v.Description), needle) ||
			strings.Contains(strings.ToLower(v.CourseName), needle) {
			out = append(out, v)
		}
	}
	return out
}

// SortAssignmentsByDueDate returns a copy ordered by due date. The sort is stable.
func SortAssignmentsByDueDate(views []AssignmentView, ascending bool) []AssignmentView {
	out := append([]AssignmentView(nil), views...)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].DueDate.After(out[j].DueDate)
	})
	return out
}
