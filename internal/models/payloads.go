package models

// These structs define the JSON payloads of the HTTP-triggered functions
// on the query side of the pipeline.

// RouteRequest is the input for the llm-router function. Backend forces a
// specific backend, Strategy picks a routing strategy; both default to the
// cascading router when empty.
type RouteRequest struct {
	Prompt   string `json:"prompt"`
	Backend  string `json:"backend,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// RouteResponse reports which strategy routed a prompt, which backend
// served it, and what it answered.
type RouteResponse struct {
	RoutedBy  string   `json:"routed_by"`
	ModelUsed string   `json:"model_used"`
	Response  string   `json:"response"`
	Trace     []string `json:"trace,omitempty"`
}

// KBQueryRequest is the input for the kb-query function.
type KBQueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// KBMatch is one retrieved chunk with its similarity score.
type KBMatch struct {
	DocumentID string  `json:"documentId"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// KBQueryResponse carries the retrieved matches and the generated summary.
type KBQueryResponse struct {
	Query   string    `json:"query"`
	Matches []KBMatch `json:"matches"`
	Summary string    `json:"summary"`
}

// KBIngestRequest asks the kb-ingest function to index one merged document.
type KBIngestRequest struct {
	DocumentID string `json:"documentId"`
}

// KBIngestResponse reports whether ingestion ran. Started is false when
// the merged document holds no readable text.
type KBIngestResponse struct {
	DocumentID string `json:"documentId"`
	Started    bool   `json:"started"`
	Chunks     int    `json:"chunks,omitempty"`
}
