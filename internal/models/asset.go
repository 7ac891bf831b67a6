package models

import "time"

// Asset is a downloadable catalog entry. Assets are read-only in the gateway.
type Asset struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	TitleAr     string      `json:"title_ar,omitempty"`
	Description string      `json:"description"`
	Publisher   Publisher   `json:"publisher"`
	Category    string      `json:"category"`
	Format      string      `json:"format"`
	Language    string      `json:"language"`
	License     License     `json:"license"`
	Stats       AssetStats  `json:"stats"`
	Access      AssetAccess `json:"access"`
	StorageKey  string      `json:"-"`
	PublishedAt time.Time   `json:"published_at"`
}

type Publisher struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type License struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type AssetStats struct {
	Downloads int64   `json:"downloads"`
	Views     int64   `json:"views"`
	Rating    float64 `json:"rating"`
}

type AssetAccess struct {
	IsFree           bool `json:"is_free"`
	RequiresApproval bool `json:"requires_approval"`
}

// FilterOption is one selectable value of a facet.
type FilterOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Count       int    `json:"count"`
	Selected    bool   `json:"selected"`
	ToggleQuery string `json:"toggle_query"`
}
