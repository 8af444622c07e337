package recording

import (
	"sort"
	"strings"
)

// SortField names a sortable Recording attribute.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortTitle     SortField = "title"
	SortDuration  SortField = "duration"
)

// SortFields is the allowlist accepted by ParseSort, in UI cycle order.
var SortFields = []SortField{SortCreatedAt, SortUpdatedAt, SortTitle, SortDuration}

// SortOrder is a parsed "field" or "-field" sort key.
type SortOrder struct {
	Field SortField
	Desc  bool
}

// DefaultSort lists newest recordings first, matching storage order.
var DefaultSort = SortOrder{Field: SortCreatedAt, Desc: true}

// ParseSort parses "field" or "-field" (descending). Unknown or empty
// fields fall back to DefaultSort.
func ParseSort(s string) SortOrder {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort
	}
	o := SortOrder{}
	if strings.HasPrefix(s, "-") {
		o.Desc = true
		s = s[1:]
	}
	for _, f := range SortFields {
		if string(f) == s {
			o.Field = f
			return o
		}
	}
	return DefaultSort
}

// String renders the order in ParseSort syntax.
func (o SortOrder) String() string {
	if o.Desc {
		return "-" + string(o.Field)
	}
	return string(o.Field)
}

// Sort orders recs in place. The sort is stable so equal keys keep their
// storage order.
func Sort(recs []Recording, o SortOrder) {
	less := lessFunc(o.Field)
	sort.SliceStable(recs, func(i, j int) bool {
		if o.Desc {
			return less(recs[j], recs[i])
		}
		return less(recs[i], recs[j])
	})
}

func lessFunc(f SortField) func(a, b Recording) bool {
	switch f {
	case SortUpdatedAt:
		return func(a, b Recording) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case SortTitle:
		return func(a, b Recording) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortDuration:
		return func(a, b Recording) bool { return a.Transcription.Duration < b.Transcription.Duration }
	default:
		return func(a, b Recording) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}
