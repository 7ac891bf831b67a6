package catalog

// Pagination is the page envelope of a catalog response.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// PerPageLimit bounds page sizes so MaxPage*PerPageLimit cannot overflow.
const PerPageLimit = 1000

// NewPagination computes the envelope for page of a result of total items.
func NewPagination(page, perPage, total int) Pagination {
	page = min(max(page, 1), MaxPage)
	perPage = min(max(perPage, 1), PerPageLimit)
	total = max(total, 0)

	pages := (total + perPage - 1) / perPage
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// Offset is the index of the first item on the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// View is the "showing X–Y of Z" block and navigation state.
type View struct {
	StartItem    int  `json:"start_item"`
	EndItem      int  `json:"end_item"`
	PrevDisabled bool `json:"prev_disabled"`
	NextDisabled bool `json:"next_disabled"`
}

// View derives the display block. A page past the end shows no range.
func (p Pagination) View() View {
	v := View{
		PrevDisabled: !p.HasPrev,
		NextDisabled: !p.HasNext,
	}
	start := p.Offset() + 1
	if p.Total == 0 || start > p.Total {
		return v
	}
	v.StartItem = start
	v.EndItem = min(p.Page*p.PerPage, p.Total)
	return v
}
