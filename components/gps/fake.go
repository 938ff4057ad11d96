package gps

import (
	"context"
	"sync"

	"go.viam.com/closecall/logging"
)

// A FakeRead is one scripted ReadData result.
type FakeRead struct {
	Data string
	N    int
	Err  error
}

// FakePort is a scripted Port. Each ReadData consumes one FakeRead; when none are left the port
// has no data available.
type FakePort struct {
	mu     sync.Mutex
	reads  []FakeRead
	calls  int
	closed bool
}

// NewFakePort returns a FakePort that replays `reads`.
func NewFakePort(reads ...FakeRead) *FakePort {
	return &FakePort{reads: reads}
}

// FakeOpener returns a PortOpener that always hands out `port`.
func FakeOpener(port Port) PortOpener {
	return func(context.Context, string, uint, logging.Logger) (Port, error) {
		return port, nil
	}
}

// FailingOpener returns a PortOpener that always fails with `err`.
func FailingOpener(err error) PortOpener {
	return func(context.Context, string, uint, logging.Logger) (Port, error) {
		return nil, err
	}
}

// DataAvailable reports whether scripted reads remain.
func (p *FakePort) DataAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && len(p.reads) > 0
}

// ReadData replays the next scripted read. N overrides the byte count when non-zero.
func (p *FakePort) ReadData(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.reads) == 0 {
		return 0, nil
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	n := copy(buf, r.Data)
	if r.N != 0 {
		n = r.N
	}
	return n, r.Err
}

// ReadCalls returns how many times ReadData was called.
func (p *FakePort) ReadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Close marks the port closed.
func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
