package inventory

import (
	"strconv"
	"strings"
)

// RecordKey is the vector record identifier for a row, e.g. "car_42".
// ParseRecordID(RecordKey(id)) returns id for numeric ids.
func RecordKey(id ID) string {
	return "car_" + id.String()
}

// ChunkText renders the searchable text of a row. Empty attributes are skipped.
func ChunkText(r Row) string {
	var parts []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}

	title := strings.TrimSpace(r.Brand + " " + r.Model)
	if r.Year != nil {
		title = strconv.FormatInt(*r.Year, 10) + " " + title
	}
	if title != "" {
		parts = append(parts, title)
	}
	if r.Price != nil {
		add("Price", strconv.FormatFloat(*r.Price, 'f', -1, 64))
	}
	if r.KilometersDriven != nil {
		add("Kilometers driven", strconv.FormatInt(*r.KilometersDriven, 10))
	}
	add("Fuel", r.FuelType)
	add("Transmission", r.Transmission)
	add("Owner", r.OwnerType)
	add("Mileage", r.Mileage)
	add("Engine", r.Engine)
	add("Power", r.Power)
	if r.Seats != nil {
		add("Seats", strconv.FormatFloat(*r.Seats, 'f', -1, 64))
	}
	add("Description", r.Description)

	return strings.Join(parts, ". ")
}

// ChunkFields is the metadata stored next to a row's vector.
// Price is omitted when unknown so that lookups fall through to "N/A".
func ChunkFields(r Row) map[string]any {
	fields := map[string]any{
		"chunk_text": ChunkText(r),
		"Brand":      r.Brand,
		"Model":      r.Model,
		"ID":         r.ID.String(),
	}
	if r.Price != nil {
		fields["Price"] = *r.Price
	}
	return fields
}
