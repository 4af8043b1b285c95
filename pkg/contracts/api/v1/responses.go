package api

// SchemaField is one canonical field of a dataset with its accepted spellings
type SchemaField struct {
	Field       string   `json:"field"`
	Aliases     []string `json:"aliases"`
	Required    bool     `json:"required"`
	Identifying bool     `json:"identifying"`
}

// SchemaResponse describes a recognizable dataset type
type SchemaResponse struct {
	Key               string        `json:"key"`
	DisplayName       string        `json:"display_name"`
	FilenamePrefixes  []string      `json:"filename_prefixes"`
	RequiredFields    []string      `json:"required_fields"`
	IdentifyingFields []string      `json:"identifying_fields"`
	Fields            []SchemaField `json:"fields"`
}

// SchemaListResponse lists every dataset type in registry order
type SchemaListResponse struct {
	Schemas []SchemaResponse `json:"schemas"`
	Count   int              `json:"count"`
}

// PageSummary is one entry of the page catalog listing
type PageSummary struct {
	Key               string `json:"key"`
	Title             string `json:"title"`
	Notice            string `json:"notice,omitempty"`
	Inputs            int    `json:"inputs"`
	RequiredInputs    int    `json:"required_inputs"`
	UnderConstruction bool   `json:"under_construction"`
}

// PageListResponse lists the page catalog in display order
type PageListResponse struct {
	Pages []PageSummary `json:"pages"`
	Count int           `json:"count"`
}
