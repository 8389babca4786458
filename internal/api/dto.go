package api

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Name   string         `json:"name" example:"Elira Dawnsworn" validate:"required"`
	Values map[string]any `json:"values"`
}

// UpdateRecordRequest is the request body for updating record values.
type UpdateRecordRequest struct {
	Values map[string]any `json:"values" validate:"required"`
}

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// CategoryListResponse wraps the category listing.
type CategoryListResponse struct {
	Categories []CategoryInfo `json:"categories" validate:"required"`
}

// TemplateResponse carries the template document for a category, both raw
// and parsed into its field declarations.
type TemplateResponse struct {
	Category string      `json:"category" example:"characters" validate:"required"`
	Template string      `json:"template" validate:"required"`
	Fallback bool        `json:"fallback" example:"false"`
	Fields   []FieldInfo `json:"fields" validate:"required"`
}

// FieldInfo is the parsed form of one template field declaration.
type FieldInfo struct {
	Key      string   `json:"key" example:"biography" validate:"required"`
	Label    string   `json:"label" example:"Biography" validate:"required"`
	Type     string   `json:"type" example:"multiline" validate:"required"`
	Required bool     `json:"required" example:"false"`
	Width    int      `json:"width,omitempty" example:"300"`
	Height   int      `json:"height,omitempty" example:"300"`
	Targets  []string `json:"targets,omitempty" example:"characters"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Category string `json:"category" example:"characters" validate:"required"`
	ID       string `json:"id" example:"elira_dawnsworn" validate:"required"`
	Name     string `json:"name" example:"Elira Dawnsworn" validate:"required"`
	Snippet  string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// BacklinkRef identifies a record that links to the requested target.
type BacklinkRef struct {
	Category string `json:"category" example:"factions" validate:"required"`
	ID       string `json:"id" example:"silver_order" validate:"required"`
}

// BacklinksResponse wraps a backlink listing.
type BacklinksResponse struct {
	Backlinks []BacklinkRef `json:"backlinks" validate:"required"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Filename string `json:"filename" example:"portrait.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	Path     string `json:"path" example:"records/characters/images/elira_dawnsworn/portrait.png" validate:"required"`
}
