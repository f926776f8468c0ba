package autorag

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// maxFrame bounds one "data:" line; a cars frame carries up to a dozen full records.
const maxFrame = 1 << 20

var errNoDone = errors.New("autorag: stream ended without [DONE]")

type wireFrame struct {
	Text  *string `json:"text"`
	Cars  []Car   `json:"cars"`
	Error *string `json:"error"`
}

// readEvents decodes "data: <json>" lines until the [DONE] sentinel.
// Comment lines and other SSE fields are ignored.
func readEvents(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrame)

	for sc.Scan() {
		line := sc.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == doneSentinel {
			return nil
		}

		ev, err := decodeFrame(payload)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("autorag: read stream: %w", err)
	}
	return errNoDone
}

func decodeFrame(payload string) (Event, error) {
	var f wireFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Event{}, fmt.Errorf("autorag: decode frame: %w", err)
	}
	switch {
	case f.Error != nil:
		return Event{Kind: EventError, Error: *f.Error}, nil
	case f.Cars != nil:
		return Event{Kind: EventCars, Cars: f.Cars}, nil
	case f.Text != nil:
		return Event{Kind: EventText, Text: *f.Text}, nil
	}
	return Event{}, fmt.Errorf("autorag: unknown frame %s", payload)
}
