package repository

import (
	"context"
	"math"
	"strings"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
)

// RecordRepository provides access to the birds table.
type RecordRepository interface {
	// Find returns the records matching every whitespace-separated term of
	// query. A term matches when it is a case-insensitive substring of the
	// genus, species, subspecies or English name. An empty query lists.
	Find(ctx context.Context, query string, filters *Filters) ([]entities.Bird, error)

	// List returns records matching filters.
	List(ctx context.Context, filters *Filters) ([]entities.Bird, error)

	// Count returns the number of records Find would return without
	// Limit/Offset.
	Count(ctx context.Context, query string, filters *Filters) (int64, error)

	// Get retrieves a bird by ID.
	// Returns ErrBirdNotFound if not found.
	Get(ctx context.Context, id uint) (*entities.Bird, error)

	// Create validates and inserts a bird. The ID is set on success.
	Create(ctx context.Context, bird *entities.Bird) error

	// Update validates and saves a bird.
	// Returns ErrBirdNotFound if not found.
	Update(ctx context.Context, bird *entities.Bird) error

	// Delete removes a bird by ID.
	// Returns ErrBirdNotFound if not found.
	Delete(ctx context.Context, id uint) error

	// DistinctValues returns the sorted distinct values of a filter column.
	DistinctValues(ctx context.Context, field FilterField) ([]string, error)

	// Upsert matches on genus + species + subspecies. A missing record is
	// created; an existing one gets the English name and family of bird.
	Upsert(ctx context.Context, bird *entities.Bird) (created bool, err error)
}

// FilterField names a column that can be used as an exact-match filter.
type FilterField string

const (
	FieldGenus   FilterField = "genus"
	FieldSpecies FilterField = "species"
)

// Valid reports whether f is a known filter column.
func (f FilterField) Valid() bool {
	return f == FieldGenus || f == FieldSpecies
}

// ParseFilterField converts a query parameter name into a FilterField.
func ParseFilterField(s string) (FilterField, bool) {
	f := FilterField(strings.ToLower(strings.TrimSpace(s)))
	return f, f.Valid()
}

// DefaultOrder is used when Filters.OrderBy is empty or unknown. A leading
// "-" in OrderBy sorts descending.
const DefaultOrder = "english_name"

var orderColumns = map[string]string{
	"english_name": "english_name",
	"genus":        "genus",
	"species":      "species",
	"subspecies":   "subspecies",
	"family":       "family",
	"id":           "id",
	"created_at":   "created_at",
}

// Filters narrows a query. Genus and Species are exact matches and combine
// with AND. A zero Limit means no limit.
type Filters struct {
	Genus   string
	Species string
	Limit   int
	Offset  int
	OrderBy string
}

// NewFilters returns an empty filter set.
func NewFilters() *Filters {
	return &Filters{}
}

// WithGenus adds an exact genus filter.
func (f *Filters) WithGenus(genus string) *Filters {
	f.Genus = strings.TrimSpace(genus)
	return f
}

// WithSpecies adds an exact species filter.
func (f *Filters) WithSpecies(species string) *Filters {
	f.Species = strings.TrimSpace(species)
	return f
}

// WithPage sets Limit and Offset for a 1-based page number. An offset that
// would overflow int saturates at math.MaxInt, which selects no rows.
func (f *Filters) WithPage(page, perPage int) *Filters {
	page = max(page, 1)
	f.Limit = max(perPage, 0)
	if f.Limit > 0 && page-1 > math.MaxInt/f.Limit {
		f.Offset = math.MaxInt
		return f
	}
	f.Offset = (page - 1) * f.Limit
	return f
}

// WithLimit sets the maximum number of rows.
func (f *Filters) WithLimit(limit int) *Filters {
	f.Limit = max(limit, 0)
	return f
}

// WithOrder sets the ordering column, e.g. "genus" or "-english_name".
func (f *Filters) WithOrder(order string) *Filters {
	f.OrderBy = order
	return f
}

// orderClause returns a SQL ORDER BY clause. Unknown columns fall back to
// the default. id is always appended as a tiebreaker.
func (f *Filters) orderClause() string {
	order := DefaultOrder
	if f != nil && f.OrderBy != "" {
		order = f.OrderBy
	}

	dir := "ASC"
	if rest, ok := strings.CutPrefix(order, "-"); ok {
		order, dir = rest, "DESC"
	}

	column, ok := orderColumns[order]
	if !ok {
		column, dir = DefaultOrder, "ASC"
	}
	if column == "id" {
		return "id " + dir
	}
	return column + " " + dir + ", id ASC"
}

// Value returns the value of the named filter.
func (f *Filters) Value(field FilterField) string {
	if f == nil {
		return ""
	}
	switch field {
	case FieldGenus:
		return f.Genus
	case FieldSpecies:
		return f.Species
	default:
		return ""
	}
}
