package rag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/autorag/internal/domain/inventory"
)

// MaxContextItems bounds how many items reach the completion prompt.
const MaxContextItems = 6

const notAvailable = "N/A"

// BuildMatchContext renders at most maxItems matches as labeled blocks.
func BuildMatchContext(matches []Match, maxItems int) string {
	return buildContext(matches, maxItems, func(i int, m Match) string {
		return fmt.Sprintf("-- Car %d --\nBrand: %s\nModel: %s\nPrice: %s\nInfo: %s",
			i+1, orNA(m.Brand), orNA(m.Model), anyOrNA(m.Price), m.ChunkText)
	})
}

// BuildRecordContext renders at most maxItems hydrated records as labeled blocks.
func BuildRecordContext(records []inventory.Record, maxItems int) string {
	return buildContext(records, maxItems, func(i int, r inventory.Record) string {
		var b strings.Builder
		fmt.Fprintf(&b, "-- Car %d --\n", i+1)
		fmt.Fprintf(&b, "Brand: %s\n", textOrNA(r.Brand))
		fmt.Fprintf(&b, "Model: %s\n", textOrNA(r.Model))
		fmt.Fprintf(&b, "Year: %s\n", intOrNA(r.Year))
		fmt.Fprintf(&b, "Price: %s\n", floatOrNA(r.Price))
		fmt.Fprintf(&b, "Fuel: %s\n", textOrNA(r.FuelType))
		fmt.Fprintf(&b, "Transmission: %s\n", textOrNA(r.Transmission))
		fmt.Fprintf(&b, "Mileage: %s\n", textOrNA(r.Mileage))
		fmt.Fprintf(&b, "Info: %s", r.Description)
		return b.String()
	})
}

func buildContext[T any](items []T, maxItems int, render func(int, T) string) string {
	if maxItems <= 0 || len(items) == 0 {
		return ""
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	blocks := make([]string, len(items))
	for i, it := range items {
		blocks[i] = render(i, it)
	}
	return strings.Join(blocks, "\n\n")
}

func orNA(s *string) string {
	if s == nil {
		return notAvailable
	}
	return textOrNA(*s)
}

func textOrNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func anyOrNA(v any) string {
	if v == nil {
		return notAvailable
	}
	return textOrNA(stringify(v))
}

func intOrNA(v *int64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatInt(*v, 10)
}

func floatOrNA(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
