package domain

// Chunk is one embedded inventory document as written to the vector index.
// Fields are the retrieval metadata returned with every hit (chunk_text, Brand, Model, Price, ID).
type Chunk struct {
	RecordID string
	Fields   map[string]any
	Vector   []float32
}
