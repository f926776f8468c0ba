package rag

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// Metadata keys probed for each logical field, in priority order.
// Vector records written by different ingestion jobs spell them differently.
var (
	textKeys  = []string{"chunk_text", "text", "content"}
	brandKeys = []string{"Brand", "brand"}
	modelKeys = []string{"Model", "model"}
	priceKeys = []string{"Price", "price"}
	idKeys    = []string{"ID", "Car_ID", "car_id"}
)

// Match is the uniform projection of a retrieval hit.
type Match struct {
	ID        string       `json:"id"`
	Score     float64      `json:"score"`
	ChunkText string       `json:"chunk_text"`
	Brand     *string      `json:"brand"`
	Model     *string      `json:"model"`
	Price     any          `json:"price"`
	CarID     inventory.ID `json:"car_id"`
}

// Normalize projects hits onto Match. It is pure and idempotent.
func Normalize(hits []domain.RetrievalHit) []Match {
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, normalizeHit(h))
	}
	return out
}

func normalizeHit(h domain.RetrievalHit) Match {
	m := Match{ID: h.ID, Score: h.Score}
	if v, ok := lookupField(h.Fields, textKeys...); ok {
		m.ChunkText = stringify(v)
	}
	if v, ok := lookupField(h.Fields, brandKeys...); ok {
		s := stringify(v)
		m.Brand = &s
	}
	if v, ok := lookupField(h.Fields, modelKeys...); ok {
		s := stringify(v)
		m.Model = &s
	}
	if v, ok := lookupField(h.Fields, priceKeys...); ok {
		m.Price = v
	}
	m.CarID = resolveInventoryID(h)
	return m
}

// resolveInventoryID tries the "car_<digits>" suffix of the hit id first, then the explicit id field.
func resolveInventoryID(h domain.RetrievalHit) inventory.ID {
	if id, ok := inventory.ParseRecordID(h.ID); ok {
		return id
	}
	if v, ok := lookupField(h.Fields, idKeys...); ok {
		if id, ok := inventory.IDFromValue(v); ok {
			return id
		}
	}
	return inventory.ID{}
}

// ExtractIDs returns the distinct inventory ids of matches in first-seen order.
func ExtractIDs(matches []Match) []inventory.ID {
	seen := make(map[inventory.ID]struct{}, len(matches))
	ids := make([]inventory.ID, 0, len(matches))
	for _, m := range matches {
		if m.CarID.IsZero() {
			continue
		}
		if _, dup := seen[m.CarID]; dup {
			continue
		}
		seen[m.CarID] = struct{}{}
		ids = append(ids, m.CarID)
	}
	return ids
}

// lookupField returns the first key of keys that is present with a non-empty value.
func lookupField(fields map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
