package db

import (
	"fmt"
	"strings"
)

// Filter represents a single donation query condition.
type Filter interface {
	// SQL returns the SQL fragment for this filter
	SQL() string

	// Args returns the arguments for this filter
	Args() []interface{}

	// Valid checks if the filter is valid
	Valid() bool
}

// TextFilter matches a case-insensitive substring of title, description or
// category.
type TextFilter struct {
	Text string
}

// Valid checks if there is anything to search for.
func (f *TextFilter) Valid() bool {
	return strings.TrimSpace(f.Text) != ""
}

// SQL returns the SQL fragment for text search.
func (f *TextFilter) SQL() string {
	return "(lower(title) LIKE ? ESCAPE '\\' OR lower(description) LIKE ? ESCAPE '\\' OR lower(category) LIKE ? ESCAPE '\\')"
}

// Args returns the arguments for text search.
func (f *TextFilter) Args() []interface{} {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(f.Text))) + "%"
	return []interface{}{pattern, pattern, pattern}
}

// CategoryFilter matches an exact category. "all" matches everything.
type CategoryFilter struct {
	Category string
}

// Valid checks if the category narrows the result.
func (f *CategoryFilter) Valid() bool {
	c := strings.TrimSpace(f.Category)
	return c != "" && !strings.EqualFold(c, "all")
}

// SQL returns the SQL fragment for category filtering.
func (f *CategoryFilter) SQL() string {
	return "category = ? COLLATE NOCASE"
}

// Args returns the arguments for category filtering.
func (f *CategoryFilter) Args() []interface{} {
	return []interface{}{strings.TrimSpace(f.Category)}
}

// AvailableFilter keeps only unbooked donations.
type AvailableFilter struct{}

func (f *AvailableFilter) Valid() bool         { return true }
func (f *AvailableFilter) SQL() string         { return "available = 1" }
func (f *AvailableFilter) Args() []interface{} { return nil }

// OwnerFilter keeps donations listed by one user.
type OwnerFilter struct {
	UserID string
}

func (f *OwnerFilter) Valid() bool         { return f.UserID != "" }
func (f *OwnerFilter) SQL() string         { return "user_id = ?" }
func (f *OwnerFilter) Args() []interface{} { return []interface{}{f.UserID} }

// SortOrder orders donation listings.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortTitleAsc  SortOrder = "title_asc"
	SortTitleDesc SortOrder = "title_desc"
)

// ParseSortOrder validates a sort order name. Empty means newest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortTitleAsc, SortTitleDesc:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s", s)
	}
}

// orderBy returns the ORDER BY clause. id breaks ties so equal timestamps
// keep insertion order.
func (o SortOrder) orderBy() string {
	switch o {
	case SortOldest:
		return "ORDER BY created_at ASC, id ASC"
	case SortTitleAsc:
		return "ORDER BY title COLLATE NOCASE ASC, id ASC"
	case SortTitleDesc:
		return "ORDER BY title COLLATE NOCASE DESC, id DESC"
	default:
		return "ORDER BY created_at DESC, id DESC"
	}
}

// DonationQuery is the filter and sort of a donation listing.
type DonationQuery struct {
	Text          string
	Category      string
	AvailableOnly bool
	UserID        string
	Sort          SortOrder
}

// Builder converts q to a FilterBuilder.
func (q DonationQuery) Builder() *FilterBuilder {
	fb := NewFilterBuilder().
		Text(q.Text).
		Category(q.Category).
		Owner(q.UserID)
	if q.AvailableOnly {
		fb.AvailableOnly()
	}
	return fb
}

// FilterBuilder builds SQL filter conditions from multiple filters.
type FilterBuilder struct {
	filters []Filter
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]Filter, 0),
	}
}

func (fb *FilterBuilder) add(f Filter) *FilterBuilder {
	if f.Valid() {
		fb.filters = append(fb.filters, f)
	}
	return fb
}

// Text adds a free text filter.
func (fb *FilterBuilder) Text(text string) *FilterBuilder {
	return fb.add(&TextFilter{Text: text})
}

// Category adds a category filter.
func (fb *FilterBuilder) Category(category string) *FilterBuilder {
	return fb.add(&CategoryFilter{Category: category})
}

// AvailableOnly drops booked donations.
func (fb *FilterBuilder) AvailableOnly() *FilterBuilder {
	return fb.add(&AvailableFilter{})
}

// Owner adds an owner filter.
func (fb *FilterBuilder) Owner(userID string) *FilterBuilder {
	return fb.add(&OwnerFilter{UserID: userID})
}

// HasFilters returns true if any filters have been added.
func (fb *FilterBuilder) HasFilters() bool {
	return len(fb.filters) > 0
}

// Count returns the number of filters.
func (fb *FilterBuilder) Count() int {
	return len(fb.filters)
}

// Build builds the SQL WHERE clause and returns the arguments.
// The fragment is empty when there are no filters.
func (fb *FilterBuilder) Build() (string, []interface{}) {
	if !fb.HasFilters() {
		return "", nil
	}

	var sqlParts []string
	var args []interface{}
	for _, filter := range fb.filters {
		sqlParts = append(sqlParts, filter.SQL())
		args = append(args, filter.Args()...)
	}
	return "WHERE " + strings.Join(sqlParts, " AND "), args
}

// String returns a string representation of the filters (for debugging).
func (fb *FilterBuilder) String() string {
	if !fb.HasFilters() {
		return "(no filters)"
	}

	var parts []string
	for _, filter := range fb.filters {
		parts = append(parts, fmt.Sprintf("%T", filter))
	}
	return strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
