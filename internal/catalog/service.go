package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"golang.org/x/text/language"
)

// SearchResult is one rendered page of the catalog view.
type SearchResult struct {
	Assets     []models.Asset                  `json:"assets"`
	Filters    map[Facet][]models.FilterOption `json:"filters"`
	Pagination Pagination                      `json:"pagination"`
	View       View                            `json:"view"`
	Query      string                          `json:"query"`
}

// Service answers catalog queries from a Source.
type Service struct {
	source         Source
	defaultPerPage int
	maxPerPage     int
	logger         *slog.Logger
}

// NewService creates a catalog service.
func NewService(source Source, defaultPerPage, maxPerPage int, logger *slog.Logger) *Service {
	return &Service{
		source:         source,
		defaultPerPage: min(max(defaultPerPage, 1), PerPageLimit),
		maxPerPage:     min(max(maxPerPage, defaultPerPage, 1), PerPageLimit),
		logger:         logger,
	}
}

// PerPage clamps a requested page size; zero or negative selects the default.
func (s *Service) PerPage(requested int) int {
	if requested <= 0 {
		return s.defaultPerPage
	}
	return min(requested, s.maxPerPage)
}

// Search returns the page of state with filter options localized for tag.
func (s *Service) Search(ctx context.Context, state ViewState, perPage int, tag language.Tag) (*SearchResult, error) {
	perPage = s.PerPage(perPage)
	state.SetPage(state.Page)
	offset := NewPagination(state.Page, perPage, 0).Offset()

	page, err := s.source.Search(ctx, Filter{Search: state.Search, Facets: state.Facets}, offset, perPage)
	if err != nil {
		s.logger.Error("catalog search failed", "error", err)
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	labels, err := s.source.Labels(ctx)
	if err != nil {
		s.logger.Warn("failed to load facet labels", "error", err)
		labels = nil
	}

	pagination := NewPagination(state.Page, perPage, page.Total)
	assets := page.Assets
	if assets == nil {
		assets = []models.Asset{}
	}

	return &SearchResult{
		Assets:     assets,
		Filters:    filterOptions(state, page.Counts, labels, tag),
		Pagination: pagination,
		View:       pagination.View(),
		Query:      state.Query(),
	}, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id string) (*models.Asset, error) {
	return s.source.Get(ctx, id)
}

// filterOptions lists every known value of each facet, counted values first.
// Each option carries the query string of the state after toggling it.
func filterOptions(state ViewState, counts map[Facet][]FacetCount, labels map[Facet]map[string]Label, tag language.Tag) map[Facet][]models.FilterOption {
	out := make(map[Facet][]models.FilterOption, len(Facets))
	for _, f := range Facets {
		seen := make(map[string]bool)
		values := make([]FacetCount, 0, len(counts[f]))
		for _, c := range counts[f] {
			seen[c.Value] = true
			values = append(values, c)
		}

		var rest []string
		for value := range labels[f] {
			if !seen[value] {
				rest = append(rest, value)
			}
		}
		for _, value := range state.Facets[f] {
			if !seen[value] && !slices.Contains(rest, value) {
				rest = append(rest, value)
			}
		}
		slices.Sort(rest)
		for _, value := range rest {
			values = append(values, FacetCount{Value: value})
		}

		options := make([]models.FilterOption, 0, len(values))
		for _, c := range values {
			toggled := state.Clone()
			toggled.ToggleFacet(f, c.Value)

			label := c.Value
			if l, ok := labels[f][c.Value]; ok {
				label = i18n.Localized(tag, l.En, l.Ar)
			}

			options = append(options, models.FilterOption{
				Value:       c.Value,
				Label:       label,
				Count:       c.Count,
				Selected:    state.Selected(f, c.Value),
				ToggleQuery: toggled.Query(),
			})
		}
		out[f] = options
	}
	return out
}
