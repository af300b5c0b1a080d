package common

// FilterOption is one parsed filter condition. Column holds the field path
// (relations separated by "__"), Operator the lookup name.
type FilterOption struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

type SortOption struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Response structures
type Response struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data"`
	Metadata *Metadata   `json:"metadata,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
}

type Metadata struct {
	Total    int64 `json:"total"`
	Count    int64 `json:"count"`
	Filtered int64 `json:"filtered"`
	Limit    int   `json:"limit"`
	Offset   int   `json:"offset"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}
