package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/closecall/components/gps"
	"go.viam.com/closecall/logging"
)

var detectedAt = time.Date(2015, 6, 1, 12, 30, 45, 123456789, time.FixedZone("PDT", -7*3600))

func TestNewEvent(t *testing.T) {
	ev := NewEvent("object-detected", detectedAt, gps.NoDataText)
	test.That(t, ev.Message, test.ShouldEqual, "object-detected 2015-06-01T19:30:45Z")
	test.That(t, ev.Timestamp, test.ShouldResemble, time.Date(2015, 6, 1, 19, 30, 45, 0, time.UTC))
	test.That(t, ev.Location, test.ShouldEqual, "No GPS Data")
}

func TestPayloadFormats(t *testing.T) {
	ev := NewEvent("object-detected", detectedAt, gps.NoDataText)

	payload, err := ev.Payload(PayloadJSON)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(payload), test.ShouldEqual,
		`{"message":"object-detected 2015-06-01T19:30:45Z","location":"No GPS Data"}`)
	var decoded map[string]string
	test.That(t, json.Unmarshal(payload, &decoded), test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, map[string]string{
		"message":  "object-detected 2015-06-01T19:30:45Z",
		"location": "No GPS Data",
	})

	payload, err = ev.Payload(PayloadLegacy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(payload), test.ShouldEqual,
		`{"message":"object-detected 2015-06-01T19:30:45Z""location":"No GPS Data"}`)

	// Same inputs, same bytes.
	again, err := ev.Payload(PayloadLegacy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, payload)

	_, err = ev.Payload("xml")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPayloadEscapesLocation(t *testing.T) {
	ev := NewEvent("object-detected", detectedAt, "$GPGLL,4916.45,N*2D\r\n")
	payload, err := ev.Payload(PayloadJSON)
	test.That(t, err, test.ShouldBeNil)
	var decoded wireEvent
	test.That(t, json.Unmarshal(payload, &decoded), test.ShouldBeNil)
	test.That(t, decoded.Location, test.ShouldEqual, "$GPGLL,4916.45,N*2D\r\n")
}

func TestParsePayloadFormat(t *testing.T) {
	for name, expected := range map[string]PayloadFormat{"": PayloadJSON, "json": PayloadJSON, "legacy": PayloadLegacy} {
		format, err := ParsePayloadFormat(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, format, test.ShouldEqual, expected)
	}
	_, err := ParsePayloadFormat("csv")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNotifyFansOut(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	failing := NewRecorder("mqtt", errors.New("broker unreachable"))
	healthy := NewRecorder("datastore", nil)
	n := NewNotifier(PayloadJSON, logger, failing, healthy)
	test.That(t, n.Sinks(), test.ShouldResemble, []string{"mqtt", "datastore"})

	ev := NewEvent("object-detected", detectedAt, gps.ReadErrorText)
	n.Notify(context.Background(), ev)

	test.That(t, failing.Payloads(), test.ShouldHaveLength, 1)
	test.That(t, healthy.Payloads(), test.ShouldResemble, failing.Payloads())
	test.That(t, healthy.Payloads()[0], test.ShouldContainSubstring, `"location":"GPS Error"`)

	test.That(t, observed.FilterMessage(ev.Message).Len(), test.ShouldEqual, 1)
	test.That(t, observed.FilterMessage("GPS Error").Len(), test.ShouldEqual, 1)
	failures := observed.FilterMessage("failed to deliver event").All()
	test.That(t, failures, test.ShouldHaveLength, 1)
	test.That(t, failures[0].ContextMap()["sink"], test.ShouldEqual, "mqtt")

	test.That(t, n.Close(), test.ShouldBeNil)
	test.That(t, failing.Closed(), test.ShouldBeTrue)
	test.That(t, healthy.Closed(), test.ShouldBeTrue)
}

func TestNotifyWithoutSinks(t *testing.T) {
	n := NewNotifier(PayloadLegacy, logging.NewTestLogger(t))
	n.Notify(context.Background(), NewEvent("object-detected", detectedAt, gps.NoDataText))
	test.That(t, n.Close(), test.ShouldBeNil)
}
