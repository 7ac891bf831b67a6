package catalog

import (
	"context"

	"github.com/Itqan-community/itqan-cms/internal/models"
)

// Filter selects assets. Facet values within one facet are OR-ed, facets are
// AND-ed together with the search text.
type Filter struct {
	Search string
	Facets map[Facet][]string
}

// FacetCount is how many assets carry Value. Counts honor the search text and
// every other facet's selection, so selecting a value never zeroes its
// siblings.
type FacetCount struct {
	Value string
	Count int
}

// Page is one page of matching assets plus facet counts.
type Page struct {
	Assets []models.Asset
	Total  int
	Counts map[Facet][]FacetCount
}

// Label is the bilingual display name of a facet value.
type Label struct {
	En string
	Ar string
}

// Source is a read-only asset catalog.
type Source interface {
	Search(ctx context.Context, filter Filter, offset, limit int) (*Page, error)
	Get(ctx context.Context, id string) (*models.Asset, error)
	Labels(ctx context.Context) (map[Facet]map[string]Label, error)
}
