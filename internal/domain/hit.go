package domain

// RetrievalHit is one scored vector search result.
// Score is backend specific: higher is more relevant, the range is not fixed.
type RetrievalHit struct {
	ID     string
	Score  float64
	Fields map[string]any
}
