package db

import (
	"encoding/binary"
	"math"
	"strings"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// Prefilter is an FT query expression applied before KNN, e.g. "@namespace:{ns1}".
	// Empty means "*".
	Prefilter    string
	Vector       []float32
	K            int
	ReturnFields []string
	RawScores    bool // return __vector_score as-is instead of 1-distance
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// TagFilter builds "@field:{value}" with TAG special characters escaped.
func TagFilter(field, value string) string {
	return "@" + field + ":{" + EscapeTag(value) + "}"
}

// EscapeTag escapes characters that carry meaning inside a TAG query.
func EscapeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+', '=', '~', '|', '/', '\\', ' ':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EncodeVector packs float32 values as little-endian bytes, the layout FT VECTOR fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
