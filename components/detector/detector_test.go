package detector

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

type stubPin struct {
	high   bool
	err    error
	closed bool
}

func (p *stubPin) Read(ctx context.Context) (bool, error) {
	return p.high, p.err
}

func (p *stubPin) Close() error {
	p.closed = true
	return nil
}

func TestPinDetectorPolarity(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	pin := &stubPin{}

	activeLow := newPinDetector(pin, true, logger)
	test.That(t, activeLow.ObjectDetected(ctx), test.ShouldBeTrue)
	pin.high = true
	test.That(t, activeLow.ObjectDetected(ctx), test.ShouldBeFalse)

	activeHigh := newPinDetector(pin, false, logger)
	test.That(t, activeHigh.ObjectDetected(ctx), test.ShouldBeTrue)
	pin.high = false
	test.That(t, activeHigh.ObjectDetected(ctx), test.ShouldBeFalse)

	test.That(t, activeHigh.Close(), test.ShouldBeNil)
	test.That(t, pin.closed, test.ShouldBeTrue)
}

func TestPinDetectorReadErrorIsClear(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	pin := &stubPin{err: errors.New("line busy")}
	det := newPinDetector(pin, true, logger)

	// An active-low line reading low would be a detection, but the read failed.
	test.That(t, det.ObjectDetected(context.Background()), test.ShouldBeFalse)
	test.That(t, observed.FilterMessageSnippet("failed to read detector pin").Len(), test.ShouldEqual, 1)
}

func TestFakeSequence(t *testing.T) {
	ctx := context.Background()
	fake := NewFake(false, true, false)
	test.That(t, fake.ObjectDetected(ctx), test.ShouldBeFalse)
	test.That(t, fake.ObjectDetected(ctx), test.ShouldBeTrue)
	test.That(t, fake.ObjectDetected(ctx), test.ShouldBeFalse)
	// The last reading repeats.
	test.That(t, fake.ObjectDetected(ctx), test.ShouldBeFalse)
	test.That(t, fake.Calls(), test.ShouldEqual, 4)

	empty := NewFake()
	test.That(t, empty.ObjectDetected(ctx), test.ShouldBeFalse)

	test.That(t, fake.Close(), test.ShouldBeNil)
	test.That(t, fake.Closes(), test.ShouldEqual, 1)
}

func TestNewByModel(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	det, err := New(ctx, config.DetectorConfig{Model: "fake", Sequence: []bool{true}}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, det.ObjectDetected(ctx), test.ShouldBeTrue)

	_, err = New(ctx, config.DetectorConfig{Model: "sonar"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown detector model "sonar"`)

	test.That(t, Models(), test.ShouldResemble, []string{"fake", "gpiochip", "periph"})
}

func TestRegisterTwicePanics(t *testing.T) {
	test.That(t, func() { Register("fake", nil) }, test.ShouldPanic)
}
