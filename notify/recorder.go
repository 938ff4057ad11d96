package notify

import (
	"context"
	"sync"
)

// Recorder is an in-memory Sink that keeps every payload it is sent. It backs the "log only"
// mode and tests.
type Recorder struct {
	name string
	err  error

	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

// NewRecorder returns a Recorder named `name`. When `err` is non-nil every Send records the
// payload and then fails with it.
func NewRecorder(name string, err error) *Recorder {
	return &Recorder{name: name, err: err}
}

// Name returns the sink name.
func (r *Recorder) Name() string {
	return r.name
}

// Send records a copy of the payload.
func (r *Recorder) Send(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, append([]byte(nil), payload...))
	return r.err
}

// Payloads returns the recorded payloads as strings.
func (r *Recorder) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.payloads))
	for _, p := range r.payloads {
		out = append(out, string(p))
	}
	return out
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
