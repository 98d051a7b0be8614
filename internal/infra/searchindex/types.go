package searchindex

// Document is a raw index document as returned by the store, including
// permission fields and store-internal metadata.
type Document map[string]any

// Field names carried by every document in the permission-filtered
// index. FieldUserIDs and FieldGroupIDs drive the store's document-level
// filtering and must never be surfaced to callers.
const (
	FieldID       = "id"
	FieldUserIDs  = "oid"
	FieldGroupIDs = "group"
	FieldName     = "name"
	FieldContent  = "content"
	FieldCategory = "category"
)

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type suggestRequest struct {
	Search        string `json:"search"`
	SuggesterName string `json:"suggesterName"`
	Top           int    `json:"top"`
}

type documentsResponse struct {
	Value []Document `json:"value"`
}

// IndexField describes one field of the index schema.
type IndexField struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Key        bool   `json:"key,omitempty"`
	Searchable bool   `json:"searchable"`
	Filterable bool   `json:"filterable"`
	Sortable   bool   `json:"sortable"`
	Facetable  bool   `json:"facetable"`
}

// IndexSuggester describes a suggester over searchable source fields.
type IndexSuggester struct {
	Name         string   `json:"name"`
	SearchMode   string   `json:"searchMode"`
	SourceFields []string `json:"sourceFields"`
}

// IndexSchema is the create-index request body.
type IndexSchema struct {
	Name       string           `json:"name"`
	Fields     []IndexField     `json:"fields"`
	Suggesters []IndexSuggester `json:"suggesters,omitempty"`
}

type uploadRequest struct {
	Value []Document `json:"value"`
}

type uploadResult struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"value"`
}
