package model

// Section groups recyclepedia items.
type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// RelatedItem is a short reference to another item.
type RelatedItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Facility is a place or service that accepts an item.
type Facility struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Link     string `json:"link"`
}

// Item is a recyclepedia entry.
type Item struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	ImageURL     string        `json:"image_url"`
	SectionID    int64         `json:"section_id,omitempty"`
	SectionName  string        `json:"section_name"`
	LifeCycle    string        `json:"life_cycle"`
	RecycleWay   string        `json:"recycle_way"`
	CanRecycle   bool          `json:"can_recycle"`
	RelatedItems []RelatedItem `json:"related_items,omitempty"`
	Facilities   []Facility    `json:"facilities,omitempty"`
}

// Pagination is the page envelope returned by list endpoints.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
	PerPage     int `json:"per_page"`
}

// HasMore reports whether a later page exists after page.
func (p Pagination) HasMore(page int) bool {
	return page < p.TotalPages
}

// ItemPage is one page of items.
type ItemPage struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
