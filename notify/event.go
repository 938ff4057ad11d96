// Package notify builds close-call events and delivers them to every configured sink.
package notify

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// TimestampFormat renders event times: ISO 8601 in UTC with second resolution.
const TimestampFormat = "2006-01-02T15:04:05Z"

// An Event is one detected close call.
type Event struct {
	// Message is the event tag followed by the detection time.
	Message   string
	Timestamp time.Time
	// Location is the raw GPS text or one of its sentinels.
	Location string
}

// NewEvent builds the event for a detection at `now`.
func NewEvent(tag string, now time.Time, location string) Event {
	ts := now.UTC().Truncate(time.Second)
	return Event{
		Message:   tag + " " + ts.Format(TimestampFormat),
		Timestamp: ts,
		Location:  location,
	}
}

// PayloadFormat selects the wire layout of an event.
type PayloadFormat string

const (
	// PayloadJSON is a well-formed JSON object with "message" and "location" members.
	PayloadJSON PayloadFormat = "json"
	// PayloadLegacy is the layout older dashboards parse, which has no comma between the two
	// members.
	PayloadLegacy PayloadFormat = "legacy"
)

// ParsePayloadFormat resolves a configured format name. An empty name means PayloadJSON.
func ParsePayloadFormat(name string) (PayloadFormat, error) {
	switch PayloadFormat(name) {
	case "", PayloadJSON:
		return PayloadJSON, nil
	case PayloadLegacy:
		return PayloadLegacy, nil
	default:
		return "", errors.Errorf("unknown payload format %q", name)
	}
}

type wireEvent struct {
	Message  string `json:"message"`
	Location string `json:"location"`
}

// Payload serializes the event.
func (e Event) Payload(format PayloadFormat) ([]byte, error) {
	switch format {
	case PayloadJSON, "":
		return json.Marshal(wireEvent{Message: e.Message, Location: e.Location})
	case PayloadLegacy:
		// Values are not escaped.
		return []byte(`{"message":"` + e.Message + `""location":"` + e.Location + `"}`), nil
	default:
		return nil, errors.Errorf("unknown payload format %q", format)
	}
}
