package notify

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/closecall/logging"
)

// A Sink is a remote endpoint that receives serialized events.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Notifier fans each event out to its sinks.
type Notifier struct {
	sinks  []Sink
	format PayloadFormat
	logger logging.Logger
}

// NewNotifier returns a Notifier delivering to `sinks` in order. No sinks is valid; events are
// then only logged.
func NewNotifier(format PayloadFormat, logger logging.Logger, sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks, format: format, logger: logger}
}

// Notify logs the event and sends the same payload to every sink. A failing sink is logged and
// does not keep later sinks from receiving the event.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	n.logger.Info(ev.Message)
	n.logger.Info(ev.Location)

	payload, err := ev.Payload(n.format)
	if err != nil {
		n.logger.Errorw("failed to serialize event", "error", err)
		return
	}
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, payload); err != nil {
			n.logger.Warnw("failed to deliver event", "sink", sink.Name(), "error", err)
			continue
		}
		n.logger.Debugw("event delivered", "sink", sink.Name(), "bytes", len(payload))
	}
}

// Sinks returns the sink names in delivery order.
func (n *Notifier) Sinks() []string {
	return lo.Map(n.sinks, func(sink Sink, _ int) string {
		return sink.Name()
	})
}

// Close closes every sink.
func (n *Notifier) Close() error {
	var err error
	for _, sink := range n.sinks {
		err = multierr.Combine(err, sink.Close())
	}
	return err
}
