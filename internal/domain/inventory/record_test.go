package inventory

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestImageURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		id   ID
		want string
	}{
		{"plain", "https://cdn.example.com/cars", NumericID(3), "https://cdn.example.com/cars/3.jpg"},
		{"trailing slash", "https://cdn.example.com/cars/", NumericID(3), "https://cdn.example.com/cars/3.jpg"},
		{"file in base", "https://cdn.example.com/cars/sample.PNG", NumericID(3), "https://cdn.example.com/cars/3.jpg"},
		{"string id", "https://cdn.example.com", StringID("ab"), "https://cdn.example.com/ab.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageURL(tt.base, tt.id, "jpg")
			if got == nil || *got != tt.want {
				t.Errorf("ImageURL(%q) = %v, want %q", tt.base, got, tt.want)
			}
		})
	}
}

func TestImageURL_Absent(t *testing.T) {
	if got := ImageURL("", NumericID(1), "jpg"); got != nil {
		t.Errorf("expected nil without base, got %q", *got)
	}
	if got := ImageURL("https://x", ID{}, "jpg"); got != nil {
		t.Errorf("expected nil without id, got %q", *got)
	}
}

func TestNewRecord_JSON(t *testing.T) {
	year := int64(2015)
	rec := NewRecord(Row{ID: NumericID(9), Brand: "Honda", Model: "City", Year: &year}, "")

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"Car_ID":9`, `"Brand":"Honda"`, `"Year":2015`, `"Price":null`, `"imageUrl":null`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}
