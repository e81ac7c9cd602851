package leads

import (
	"sort"
	"strings"
	"time"

	"github.com/corvandale/leadctl/internal/model"
)

// SourceAll matches every lead source in a filter.
const SourceAll model.LeadSource = "all"

type FilterOptions struct {
	// Search matches case-insensitively against name and email, and as a
	// raw substring against phone. Empty matches everything.
	Search string
	// Source restricts to one lead source; empty or SourceAll matches all.
	Source model.LeadSource
}

type SortField string

const (
	SortByName      SortField = "name"
	SortByEmail     SortField = "email"
	SortBySource    SortField = "lead_source"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Filter returns the leads matching opts, preserving order. Pure: the
// input slice is never modified.
func Filter(list []model.Lead, opts FilterOptions) []model.Lead {
	out := make([]model.Lead, 0, len(list))
	for _, lead := range list {
		if Matches(lead, opts) {
			out = append(out, lead)
		}
	}
	return out
}

// Matches reports whether a single lead passes the filter.
func Matches(lead model.Lead, opts FilterOptions) bool {
	if opts.Source != "" && opts.Source != SourceAll && lead.LeadSource != opts.Source {
		return false
	}
	if opts.Search == "" {
		return true
	}

	needle := strings.ToLower(opts.Search)
	return strings.Contains(strings.ToLower(lead.Name), needle) ||
		strings.Contains(strings.ToLower(lead.Email), needle) ||
		strings.Contains(lead.Phone, opts.Search)
}

// FilterBoard applies Filter to each partition.
func FilterBoard(board model.LeadsByStatus, opts FilterOptions) model.LeadsByStatus {
	return model.LeadsByStatus{
		NewLead:  Filter(board.NewLead, opts),
		LeadSent: Filter(board.LeadSent, opts),
		DealDone: Filter(board.DealDone, opts),
	}
}

// Sort returns a sorted copy of the leads. Date fields compare as
// timestamps; anything unrecognized falls back to name. Descending is a
// plain direction flip.
func Sort(list []model.Lead, field SortField, order SortOrder) []model.Lead {
	out := append([]model.Lead{}, list...)
	sort.SliceStable(out, func(i, j int) bool {
		if order == Descending {
			return lessBy(field, out[j], out[i])
		}
		return lessBy(field, out[i], out[j])
	})
	return out
}

// SortBoard applies Sort to each partition.
func SortBoard(board model.LeadsByStatus, field SortField, order SortOrder) model.LeadsByStatus {
	return model.LeadsByStatus{
		NewLead:  Sort(board.NewLead, field, order),
		LeadSent: Sort(board.LeadSent, field, order),
		DealDone: Sort(board.DealDone, field, order),
	}
}

func lessBy(field SortField, a, b model.Lead) bool {
	switch field {
	case SortByEmail:
		return strings.ToLower(a.Email) < strings.ToLower(b.Email)
	case SortBySource:
		return a.LeadSource < b.LeadSource
	case SortByCreatedAt:
		return parseTime(a.CreatedAt).Before(parseTime(b.CreatedAt))
	case SortByUpdatedAt:
		return parseTime(a.UpdatedAt).Before(parseTime(b.UpdatedAt))
	default:
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
}

// parseTime reads the backend's timestamp format; an unparseable value
// sorts as the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
