package autorag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Role tags a conversation message.
type Role string

// Conversation roles accepted by the server.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
)

// Message is one turn of the prior conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CarID is an inventory identifier. The server sends numeric ids as JSON numbers
// and anything else as strings; both decode into their decimal or literal text.
type CarID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *CarID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("autorag: decode car id: %w", err)
		}
		*id = CarID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("autorag: decode car id: %w", err)
		}
		*id = CarID(n.String())
	}
	return nil
}

// MarshalJSON writes integer ids as numbers.
func (id CarID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Car is a hydrated inventory record.
type Car struct {
	ID               CarID    `json:"Car_ID"`
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
	ImageURL         *string  `json:"imageUrl"`
}

// ContextChunk is a retrieval match the answer was grounded on.
type ContextChunk struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	ChunkText string  `json:"chunk_text"`
	Brand     *string `json:"brand"`
	Model     *string `json:"model"`
	Price     any     `json:"price"`
	CarID     CarID   `json:"car_id"`
}

// Answer is the batch response.
type Answer struct {
	Answer        string         `json:"answer"`
	ContextChunks []ContextChunk `json:"contextChunks"`
	CarIDs        []CarID        `json:"carIds"`
	Cars          []Car          `json:"cars"`
}

// CarImage is the resolved display image of a car.
type CarImage struct {
	CarID     CarID  `json:"carId"`
	URL       string `json:"url"`
	Extension string `json:"extension"`
	Found     bool   `json:"found"`
}

// HealthReport is the server's component health.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every component passed.
func (h HealthReport) Healthy() bool { return h.Status == "ok" }

// EventKind distinguishes streamed frames.
type EventKind int

// Stream frame kinds.
const (
	EventText EventKind = iota
	EventCars
	EventError
)

// Event is one decoded stream frame.
type Event struct {
	Kind  EventKind
	Text  string
	Cars  []Car
	Error string
}
