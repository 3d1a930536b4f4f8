package audit

import "time"

// Filters narrows the audit timeline. From and To are inclusive dates.
type Filters struct {
	CompanyID int64
	From      time.Time
	To        time.Time
	Actor     string
	Entity    string
	EntityID  string
	Action    string
	Page      int
	PageSize  int
}

// Row is one audit record.
type Row struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"occurred_at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Paging describes a window of the timeline without counting it.
type Paging struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is a page of the timeline.
type Result struct {
	Rows   []Row  `json:"data"`
	Paging Paging `json:"paging"`
}
