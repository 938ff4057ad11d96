package gps

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/closecall/logging"
)

// ReadBufferSize bounds a single location read.
const ReadBufferSize = 256

// Port is the driver boundary of a GPS receiver. ReadData returns the number of bytes copied into
// buf; a negative count or a non-nil error is a read failure.
type Port interface {
	DataAvailable() bool
	ReadData(buf []byte) (int, error)
	Close() error
}

// A PortOpener opens the receiver at `path` with the given baud rate.
type PortOpener func(ctx context.Context, path string, baudRate uint, logger logging.Logger) (Port, error)

var errPortClosed = errors.New("gps port is closed")

// Source produces location samples on demand. It holds at most one open Port.
type Source struct {
	mu     sync.Mutex
	path   string
	open   PortOpener
	logger logging.Logger

	port   Port
	closed bool
	buf    [ReadBufferSize]byte
}

// NewSource returns a Source for the receiver at `path`. Nothing is opened until InitPort.
func NewSource(path string, open PortOpener, logger logging.Logger) *Source {
	return &Source{path: path, open: open, logger: logger}
}

// InitPort opens and configures the serial link. A failure is logged and returned; the Source
// stays usable and keeps answering with NoData samples.
func (s *Source) InitPort(ctx context.Context, baudRate uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errPortClosed
	}
	if s.port != nil {
		return nil
	}

	port, err := s.open(ctx, s.path, baudRate, s.logger)
	if err != nil {
		err = errors.Wrapf(err, "failed to set up gps port %s at %d baud", s.path, baudRate)
		s.logger.Error(err)
		return err
	}
	s.port = port
	s.logger.Infow("gps port ready", "path", s.path, "baud_rate", baudRate)
	return nil
}

// ReadLocation returns the text currently pending on the receiver. It never blocks waiting for
// data: an idle receiver yields a NoData sample and a failed read yields a ReadError sample.
func (s *Source) ReadLocation(ctx context.Context) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil || !s.port.DataAvailable() {
		return NoData()
	}

	n, err := s.port.ReadData(s.buf[:])
	switch {
	case err != nil || n < 0:
		s.logger.Warnw("gps port read error", "bytes", n, "error", err)
		return ReadError()
	case n == 0:
		return NoData()
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	text := string(s.buf[:n])
	// The receiver buffer may be NUL padded.
	if i := strings.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	if text == "" {
		return NoData()
	}
	if fix, err := ParseFix(text); err == nil {
		s.logger.Debugw("gps fix", "fix", fix.String())
	}
	return Sample{Kind: SampleValid, Text: text}
}

// Ready reports whether InitPort has succeeded and the port is still open.
func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port != nil
}

// Close releases the port. Later reads report NoData.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
