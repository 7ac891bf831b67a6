package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/models"
)

// StaticSource serves a fixed in-memory data set.
type StaticSource struct {
	assets []models.Asset
	labels map[Facet]map[string]Label
}

// NewStaticSource creates a source over assets. They are served newest first.
func NewStaticSource(assets []models.Asset, labels map[Facet]map[string]Label) *StaticSource {
	sorted := slices.Clone(assets)
	slices.SortStableFunc(sorted, func(a, b models.Asset) int {
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &StaticSource{assets: sorted, labels: labels}
}

// NewMockSource returns the built-in sample catalog used when no database is
// configured.
func NewMockSource() *StaticSource {
	return NewStaticSource(mockAssets(), mockLabels())
}

func (s *StaticSource) Search(_ context.Context, filter Filter, offset, limit int) (*Page, error) {
	var matched []models.Asset
	for _, a := range s.assets {
		if matches(a, filter, "") {
			matched = append(matched, a)
		}
	}

	page := &Page{Total: len(matched), Counts: make(map[Facet][]FacetCount, len(Facets))}
	if offset >= 0 && offset < len(matched) {
		end := min(offset+limit, len(matched))
		page.Assets = matched[offset:end]
	}

	for _, f := range Facets {
		counts := make(map[string]int)
		for _, a := range s.assets {
			if matches(a, filter, f) {
				counts[facetValue(a, f)]++
			}
		}
		page.Counts[f] = sortedCounts(counts)
	}
	return page, nil
}

func (s *StaticSource) Get(_ context.Context, id string) (*models.Asset, error) {
	for _, a := range s.assets {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *StaticSource) Labels(_ context.Context) (map[Facet]map[string]Label, error) {
	return s.labels, nil
}

// matches applies filter to a, ignoring the selection of skip.
func matches(a models.Asset, filter Filter, skip Facet) bool {
	if filter.Search != "" && !matchesSearch(a, filter.Search) {
		return false
	}
	for f, values := range filter.Facets {
		if f == skip || len(values) == 0 {
			continue
		}
		if !slices.Contains(values, facetValue(a, f)) {
			return false
		}
	}
	return true
}

func matchesSearch(a models.Asset, search string) bool {
	needle := strings.ToLower(search)
	for _, field := range []string{a.Title, a.TitleAr, a.Description, a.Publisher.Name} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func facetValue(a models.Asset, f Facet) string {
	switch f {
	case FacetCategories:
		return a.Category
	case FacetFormats:
		return a.Format
	case FacetLanguages:
		return a.Language
	case FacetLicenses:
		return a.License.Code
	}
	return ""
}

func sortedCounts(counts map[string]int) []FacetCount {
	out := make([]FacetCount, 0, len(counts))
	for value, n := range counts {
		out = append(out, FacetCount{Value: value, Count: n})
	}
	slices.SortFunc(out, func(a, b FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

func mockLabels() map[Facet]map[string]Label {
	return map[Facet]map[string]Label{
		FacetCategories: {
			"quran":        {En: "Quran Text", Ar: "نص القرآن"},
			"tafsir":       {En: "Tafsir", Ar: "التفسير"},
			"recitations":  {En: "Recitations", Ar: "التلاوات"},
			"translations": {En: "Translations", Ar: "الترجمات"},
		},
		FacetFormats: {
			"json": {En: "JSON", Ar: "JSON"},
			"csv":  {En: "CSV", Ar: "CSV"},
			"xml":  {En: "XML", Ar: "XML"},
			"mp3":  {En: "MP3 Audio", Ar: "صوت MP3"},
		},
		FacetLanguages: {
			"ar": {En: "Arabic", Ar: "العربية"},
			"en": {En: "English", Ar: "الإنجليزية"},
			"ur": {En: "Urdu", Ar: "الأردية"},
		},
		FacetLicenses: {
			"cc0":          {En: "CC0 Public Domain", Ar: "ملكية عامة CC0"},
			"cc-by-4.0":    {En: "CC BY 4.0", Ar: "نسب المصنف 4.0"},
			"cc-by-nd-4.0": {En: "CC BY-ND 4.0", Ar: "نسب المصنف - منع الاشتقاق 4.0"},
		},
	}
}

func mockAssets() []models.Asset {
	tanzil := models.Publisher{ID: "pub-tanzil", Name: "Tanzil Project", Verified: true}
	kfgqpc := models.Publisher{ID: "pub-kfgqpc", Name: "King Fahd Complex", Verified: true}
	everyAyah := models.Publisher{ID: "pub-everyayah", Name: "EveryAyah"}
	ccByND := models.License{Code: "cc-by-nd-4.0", Name: "CC BY-ND 4.0"}
	free := models.AssetAccess{IsFree: true}

	return []models.Asset{
		{
			ID: "asset-uthmani-json", Title: "Uthmani Quran Text", TitleAr: "نص القرآن بالرسم العثماني",
			Description: "Full Quran text in Uthmani script with verse keys.",
			Publisher:   tanzil, Category: "quran", Format: "json", Language: "ar", License: ccByND,
			Stats:      models.AssetStats{Downloads: 15230, Views: 48211, Rating: 4.9},
			Access:     free,
			StorageKey: "assets/quran/uthmani.json", PublishedAt: date(2024, 1, 10),
		},
		{
			ID: "asset-simple-xml", Title: "Simple Clean Quran Text", TitleAr: "نص القرآن المبسط",
			Description: "Quran text without diacritics, XML per sura.",
			Publisher:   tanzil, Category: "quran", Format: "xml", Language: "ar", License: ccByND,
			Stats:      models.AssetStats{Downloads: 9120, Views: 20011, Rating: 4.7},
			Access:     free,
			StorageKey: "assets/quran/simple-clean.xml", PublishedAt: date(2024, 2, 2),
		},
		{
			ID: "asset-muyassar-csv", Title: "Tafsir al-Muyassar", TitleAr: "التفسير الميسر",
			Description: "Concise exegesis keyed by verse.",
			Publisher:   kfgqpc, Category: "tafsir", Format: "csv", Language: "ar",
			License:    models.License{Code: "cc-by-4.0", Name: "CC BY 4.0"},
			Stats:      models.AssetStats{Downloads: 4410, Views: 12880, Rating: 4.8},
			Access:     free,
			StorageKey: "assets/tafsir/muyassar.csv", PublishedAt: date(2024, 3, 15),
		},
		{
			ID: "asset-sahih-intl", Title: "Sahih International Translation", TitleAr: "ترجمة صحيح إنترناشونال",
			Description: "English translation of the meanings.",
			Publisher:   tanzil, Category: "translations", Format: "json", Language: "en", License: ccByND,
			Stats:      models.AssetStats{Downloads: 22019, Views: 60402, Rating: 4.6},
			Access:     free,
			StorageKey: "assets/translations/sahih-international.json", PublishedAt: date(2023, 11, 20),
		},
		{
			ID: "asset-urdu-jalandhry", Title: "Jalandhry Urdu Translation", TitleAr: "ترجمة جالندهري الأردية",
			Description: "Urdu translation of the meanings.",
			Publisher:   tanzil, Category: "translations", Format: "json", Language: "ur", License: ccByND,
			Stats:      models.AssetStats{Downloads: 3011, Views: 7420, Rating: 4.4},
			Access:     free,
			StorageKey: "assets/translations/jalandhry.json", PublishedAt: date(2023, 12, 5),
		},
		{
			ID: "asset-husary-mp3", Title: "Al-Husary Murattal Recitation", TitleAr: "تلاوة الحصري المرتلة",
			Description: "Verse-by-verse MP3 recitation.",
			Publisher:   everyAyah, Category: "recitations", Format: "mp3", Language: "ar",
			License:    models.License{Code: "cc0", Name: "CC0 Public Domain"},
			Stats:      models.AssetStats{Downloads: 30550, Views: 90113, Rating: 4.9},
			Access:     models.AssetAccess{RequiresApproval: true},
			StorageKey: "assets/recitations/husary.zip", PublishedAt: date(2023, 9, 1),
		},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
