package domain

// DefaultSearchLimit is the number of results returned when none is requested.
const DefaultSearchLimit = 20

// SearchOptions configures a hybrid search.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// MediaType restricts results to one media type. Empty means any.
	// When set, chunk results are never replaced by their parent document.
	MediaType MediaType

	// TimeRange restricts results by effective time.
	TimeRange *TimeRange

	// IncludeInactive also returns records that are not active.
	IncludeInactive bool
}

// EffectiveLimit returns Limit or the default when unset.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultSearchLimit
	}
	return o.Limit
}

// Matches reports whether a record passes the relational predicates.
func (o SearchOptions) Matches(r *Record) bool {
	if !o.IncludeInactive && !r.Active {
		return false
	}
	if o.MediaType != "" && r.MediaType != o.MediaType {
		return false
	}
	if o.TimeRange != nil && !o.TimeRange.Contains(r.EffectiveTime()) {
		return false
	}
	return true
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Record is the matched record, or its parent document when the
	// hit was a chunk and no media-type filter was given.
	Record Record

	// Distance is the vector distance of the matching chunk (lower is closer).
	// Only meaningful when Ranked is true.
	Distance float64

	// Ranked is false for results of a relational-only scan,
	// which carry no distance at all.
	Ranked bool
}
