package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// ItemsResponse is the envelope of admin list reads. A failed read keeps
// Items as an empty array and sets Error, so clients can tell "nothing
// pending" from "could not load".
type ItemsResponse struct {
	Items   interface{} `json:"items"`
	Total   *int64      `json:"total,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
	Error   bool        `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Store     string `json:"store"`
}
