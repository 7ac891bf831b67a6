package catalog

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Facet is a filterable asset attribute.
type Facet string

const (
	FacetCategories Facet = "categories"
	FacetFormats    Facet = "formats"
	FacetLanguages  Facet = "languages"
	FacetLicenses   Facet = "licenses"
)

// Facets lists every facet in display order.
var Facets = []Facet{FacetCategories, FacetFormats, FacetLanguages, FacetLicenses}

// Query parameter names.
const (
	ParamSearch  = "search"
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSeq     = "seq"
)

// ParseFacet returns the facet named s.
func ParseFacet(s string) (Facet, bool) {
	f := Facet(s)
	return f, slices.Contains(Facets, f)
}

// ViewState is the transient filter and pagination state of the catalog
// view. Changing the search text or any facet selection resets Page to 1.
type ViewState struct {
	Search string
	Facets map[Facet][]string
	Page   int
}

// NewViewState returns the initial state: no search, no filters, page 1.
func NewViewState() ViewState {
	return ViewState{Facets: make(map[Facet][]string), Page: 1}
}

// Clone returns a deep copy of v.
func (v ViewState) Clone() ViewState {
	c := ViewState{Search: v.Search, Page: v.Page, Facets: make(map[Facet][]string, len(v.Facets))}
	for f, values := range v.Facets {
		c.Facets[f] = slices.Clone(values)
	}
	return c
}

func (v *ViewState) SetSearch(search string) {
	v.Search = strings.TrimSpace(search)
	v.Page = 1
}

// ToggleFacet selects value if it is not selected, and deselects it
// otherwise.
func (v *ViewState) ToggleFacet(f Facet, value string) {
	if v.Facets == nil {
		v.Facets = make(map[Facet][]string)
	}
	values := v.Facets[f]
	if i := slices.Index(values, value); i >= 0 {
		values = slices.Delete(slices.Clone(values), i, i+1)
	} else {
		values = append(slices.Clone(values), value)
	}
	v.setValues(f, values)
	v.Page = 1
}

// SetFacet replaces the selection of f.
func (v *ViewState) SetFacet(f Facet, values []string) {
	if v.Facets == nil {
		v.Facets = make(map[Facet][]string)
	}
	v.setValues(f, slices.Clone(values))
	v.Page = 1
}

func (v *ViewState) setValues(f Facet, values []string) {
	values = slices.DeleteFunc(values, func(s string) bool { return s == "" })
	slices.Sort(values)
	values = slices.Compact(values)
	if len(values) == 0 {
		delete(v.Facets, f)
		return
	}
	v.Facets[f] = values
}

// MaxPage bounds the page number so offsets stay well inside int range. Any
// page beyond it is past the end of every catalog.
const MaxPage = 100000

// SetPage moves to page, clamped to [1, MaxPage].
func (v *ViewState) SetPage(page int) {
	v.Page = min(max(page, 1), MaxPage)
}

// Selected reports whether value is selected in f.
func (v ViewState) Selected(f Facet, value string) bool {
	return slices.Contains(v.Facets[f], value)
}

// Values encodes v as query parameters. Defaults are omitted.
func (v ViewState) Values() url.Values {
	q := url.Values{}
	if v.Search != "" {
		q.Set(ParamSearch, v.Search)
	}
	for _, f := range Facets {
		for _, value := range v.Facets[f] {
			q.Add(string(f), value)
		}
	}
	if v.Page > 1 {
		q.Set(ParamPage, strconv.Itoa(v.Page))
	}
	return q
}

// Query encodes v as a query string.
func (v ViewState) Query() string {
	return v.Values().Encode()
}

// ParseViewState reads a ViewState from query parameters. Facet values may be
// repeated or comma separated; unknown facets and invalid pages are ignored.
func ParseViewState(q url.Values) ViewState {
	v := NewViewState()
	v.Search = strings.TrimSpace(q.Get(ParamSearch))

	for _, f := range Facets {
		var values []string
		for _, raw := range q[string(f)] {
			for _, value := range strings.Split(raw, ",") {
				values = append(values, strings.TrimSpace(value))
			}
		}
		v.setValues(f, values)
	}

	if page, err := strconv.Atoi(q.Get(ParamPage)); err == nil {
		v.SetPage(page)
	}
	return v
}
