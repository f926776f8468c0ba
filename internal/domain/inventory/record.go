package inventory

import (
	"regexp"
	"strings"
)

// Table is the default relational table holding the inventory.
const Table = "Cars"

// Columns is the projection requested from the store, in scan order.
var Columns = []string{
	"Car_ID", "Brand", "Model", "Year", "Price", "Kilometers_Driven", "Fuel_Type",
	"Transmission", "Owner_Type", "Mileage", "Engine", "Power", "Seats", "Description",
}

// Row is one store row projected on Columns. Column names are kept as the store spells them.
type Row struct {
	ID               ID       `json:"Car_ID"`
	Brand            string   `json:"Brand"`
	Model            string   `json:"Model"`
	Year             *int64   `json:"Year"`
	Price            *float64 `json:"Price"`
	KilometersDriven *int64   `json:"Kilometers_Driven"`
	FuelType         string   `json:"Fuel_Type"`
	Transmission     string   `json:"Transmission"`
	OwnerType        string   `json:"Owner_Type"`
	Mileage          string   `json:"Mileage"`
	Engine           string   `json:"Engine"`
	Power            string   `json:"Power"`
	Seats            *float64 `json:"Seats"`
	Description      string   `json:"Description"`
}

// Record is a hydrated inventory row plus its display image URL.
type Record struct {
	Row
	ImageURL *string `json:"imageUrl"`
}

// NewRecord copies row and attaches the image URL derived from imageBase.
func NewRecord(row Row, imageBase string) Record {
	return Record{Row: row, ImageURL: ImageURL(imageBase, row.ID, "jpg")}
}

var trailingFile = regexp.MustCompile(`(?i)/[^/]*\.(jpg|png|jpeg)$`)

// ImageBase strips trailing slashes and a trailing image file name from a configured base.
func ImageBase(base string) string {
	base = strings.TrimSpace(base)
	base = trailingFile.ReplaceAllString(base, "")
	return strings.TrimRight(base, "/")
}

// ImageURL returns "<base>/<id>.<ext>", or nil when no base is configured or id is absent.
func ImageURL(base string, id ID, ext string) *string {
	base = ImageBase(base)
	if base == "" || id.IsZero() {
		return nil
	}
	u := base + "/" + id.String() + "." + ext
	return &u
}
