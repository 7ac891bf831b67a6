package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Itqan-community/itqan-cms/internal/catalog"
	"github.com/Itqan-community/itqan-cms/internal/database"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/jackc/pgx/v5"
)

const assetColumns = `
	a.id, a.title, a.title_ar, a.description,
	p.id, p.name, p.verified,
	a.category, a.format, a.language, a.license_code, a.license_name,
	a.downloads, a.views, a.rating, a.is_free, a.requires_approval,
	a.storage_key, a.published_at
`

// $1 is the escaped search text, $2..$5 the selected values per facet in
// catalog.Facets order. An empty array disables that facet's condition.
const assetFilter = `
	FROM assets a JOIN publishers p ON p.id = a.publisher_id
	WHERE ($1 = '' OR a.title ILIKE '%' || $1 || '%' OR a.title_ar ILIKE '%' || $1 || '%'
	       OR a.description ILIKE '%' || $1 || '%' OR p.name ILIKE '%' || $1 || '%')
	  AND (cardinality($2::text[]) = 0 OR a.category = ANY($2))
	  AND (cardinality($3::text[]) = 0 OR a.format = ANY($3))
	  AND (cardinality($4::text[]) = 0 OR a.language = ANY($4))
	  AND (cardinality($5::text[]) = 0 OR a.license_code = ANY($5))
`

var facetColumns = map[catalog.Facet]string{
	catalog.FacetCategories: "a.category",
	catalog.FacetFormats:    "a.format",
	catalog.FacetLanguages:  "a.language",
	catalog.FacetLicenses:   "a.license_code",
}

// AssetRepository is the PostgreSQL catalog source.
type AssetRepository struct {
	db *database.DB
}

func NewAssetRepository(db *database.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func scanAssetRow(scanner rowScanner) (*models.Asset, error) {
	var a models.Asset
	err := scanner.Scan(
		&a.ID, &a.Title, &a.TitleAr, &a.Description,
		&a.Publisher.ID, &a.Publisher.Name, &a.Publisher.Verified,
		&a.Category, &a.Format, &a.Language, &a.License.Code, &a.License.Name,
		&a.Stats.Downloads, &a.Stats.Views, &a.Stats.Rating, &a.Access.IsFree, &a.Access.RequiresApproval,
		&a.StorageKey, &a.PublishedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

// filterArgs returns the query arguments for filter with the selection of
// skip left out.
func filterArgs(filter catalog.Filter, skip catalog.Facet) []any {
	args := []any{escapeLike(filter.Search)}
	for _, f := range catalog.Facets {
		values := []string{}
		if f != skip {
			values = append(values, filter.Facets[f]...)
		}
		args = append(args, values)
	}
	return args
}

// escapeLike escapes ILIKE wildcards so search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search runs the count, page and facet-count queries in one batch.
func (r *AssetRepository) Search(ctx context.Context, filter catalog.Filter, offset, limit int) (*catalog.Page, error) {
	batch := &pgx.Batch{}

	batch.Queue(`SELECT COUNT(*) `+assetFilter, filterArgs(filter, "")...)

	pageArgs := append(filterArgs(filter, ""), limit, offset)
	batch.Queue(`SELECT `+assetColumns+assetFilter+` ORDER BY a.published_at DESC, a.id LIMIT $6 OFFSET $7`, pageArgs...)

	for _, f := range catalog.Facets {
		col := facetColumns[f]
		query := fmt.Sprintf(`SELECT %s, COUNT(*) %s GROUP BY %s ORDER BY COUNT(*) DESC, %s COLLATE "C"`, col, assetFilter, col, col)
		batch.Queue(query, filterArgs(filter, f)...)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	page := &catalog.Page{Counts: make(map[catalog.Facet][]catalog.FacetCount, len(catalog.Facets))}

	if err := results.QueryRow().Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", database.MapPostgresError(err))
	}

	rows, err := results.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	for rows.Next() {
		a, err := scanAssetRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		page.Assets = append(page.Assets, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	for _, f := range catalog.Facets {
		rows, err := results.Query()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", f, err)
		}
		counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.FacetCount, error) {
			var c catalog.FacetCount
			err := row.Scan(&c.Value, &c.Count)
			return c, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s counts: %w", f, err)
		}
		if counts == nil {
			counts = []catalog.FacetCount{}
		}
		page.Counts[f] = counts
	}

	return page, nil
}

func (r *AssetRepository) Get(ctx context.Context, id string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets a JOIN publishers p ON p.id = a.publisher_id WHERE a.id = $1`

	return scanAssetRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AssetRepository) Labels(ctx context.Context) (map[catalog.Facet]map[string]catalog.Label, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT facet, value, label_en, label_ar FROM facet_labels`)
	if err != nil {
		return nil, fmt.Errorf("failed to query facet labels: %w", err)
	}
	defer rows.Close()

	labels := make(map[catalog.Facet]map[string]catalog.Label)
	for rows.Next() {
		var facet, value string
		var label catalog.Label
		if err := rows.Scan(&facet, &value, &label.En, &label.Ar); err != nil {
			return nil, fmt.Errorf("failed to scan facet label: %w", err)
		}
		f, ok := catalog.ParseFacet(facet)
		if !ok {
			continue
		}
		if labels[f] == nil {
			labels[f] = make(map[string]catalog.Label)
		}
		labels[f][value] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facet labels: %w", err)
	}
	return labels, nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
