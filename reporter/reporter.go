// Package reporter runs the close-call loop: poll the detector on a fixed cadence and, when
// something is in range, read the GPS and notify.
package reporter

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/closecall/components/detector"
	"go.viam.com/closecall/components/gps"
	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
	"go.viam.com/closecall/notify"
)

// ClearMessage is logged on every cycle without a detection.
const ClearMessage = "Area is clear"

// Locator produces a location sample on demand.
type Locator interface {
	ReadLocation(ctx context.Context) gps.Sample
}

// Notifier delivers one event. It absorbs its own failures.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Stats counts loop activity.
type Stats struct {
	Cycles        int64
	Notifications int64
}

// Reporter is the detection loop. It is driven by one goroutine.
type Reporter struct {
	detector detector.Detector
	locator  Locator
	notifier Notifier
	clock    clock.Clock
	interval time.Duration
	tag      string
	logger   logging.Logger

	cycles        atomic.Int64
	notifications atomic.Int64
}

// New returns a Reporter. A nil clock means the wall clock; zero config values take the defaults.
func New(
	det detector.Detector,
	locator Locator,
	notifier Notifier,
	clk clock.Clock,
	cfg config.ReporterConfig,
	logger logging.Logger,
) *Reporter {
	if clk == nil {
		clk = clock.New()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	tag := cfg.Message
	if tag == "" {
		tag = config.DefaultMessage
	}
	return &Reporter{
		detector: det,
		locator:  locator,
		notifier: notifier,
		clock:    clk,
		interval: interval,
		tag:      tag,
		logger:   logger,
	}
}

// Poll runs one detection cycle and reports whether it sent a notification. The GPS is only read
// after a detection, and at most one event is built per cycle.
func (r *Reporter) Poll(ctx context.Context) bool {
	r.cycles.Inc()
	if !r.detector.ObjectDetected(ctx) {
		r.logger.Info(ClearMessage)
		return false
	}

	sample := r.locator.ReadLocation(ctx)
	if sample.Kind != gps.SampleValid {
		r.logger.Debugw("detection without gps fix", "sample", sample.Kind.String())
	}
	r.notifier.Notify(ctx, notify.NewEvent(r.tag, r.clock.Now(), sample.Text))
	r.notifications.Inc()
	return true
}

// Run polls until `ctx` is cancelled, waiting the poll interval between cycles. It always
// returns the context's error.
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Infow("watching for close calls", "interval", r.interval.String(), "tag", r.tag)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Poll(ctx)

		timer := r.clock.Timer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Stats returns the counters so far.
func (r *Reporter) Stats() Stats {
	return Stats{
		Cycles:        r.cycles.Load(),
		Notifications: r.notifications.Load(),
	}
}
