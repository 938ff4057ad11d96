package detector

import (
	"context"
	"sync"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

func init() {
	Register("fake", func(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Detector, error) {
		return NewFake(conf.Sequence...), nil
	})
}

// Fake is a scripted Detector. Each call to ObjectDetected returns the next reading of the
// sequence; once the sequence is exhausted the last reading repeats. An empty sequence always
// reports a clear area.
type Fake struct {
	mu       sync.Mutex
	sequence []bool
	calls    int
	closes   int
}

// NewFake returns a Fake replaying `sequence`.
func NewFake(sequence ...bool) *Fake {
	return &Fake{sequence: append([]bool(nil), sequence...)}
}

// ObjectDetected returns the next scripted reading.
func (f *Fake) ObjectDetected(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.calls++ }()
	switch {
	case len(f.sequence) == 0:
		return false
	case f.calls < len(f.sequence):
		return f.sequence[f.calls]
	default:
		return f.sequence[len(f.sequence)-1]
	}
}

// Calls returns how many times ObjectDetected was called.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Close records the release.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// Closes returns how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
