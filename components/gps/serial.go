package gps

import (
	"context"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/closecall/logging"
)

const (
	// pendingLimit bounds how much unread receiver output is kept. Older bytes are dropped first.
	pendingLimit = 4 * ReadBufferSize
	// interCharacterTimeoutMs lets the background reader notice Close while the receiver is idle.
	interCharacterTimeoutMs = 100
)

// SerialPort is a Port over a serial device. One background goroutine drains the device into a
// bounded pending buffer so DataAvailable and ReadData never block.
type SerialPort struct {
	mu        sync.Mutex
	pending   []byte
	lastError error

	dev                     io.ReadCloser
	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
	logger                  logging.Logger
}

// OpenSerial is the PortOpener for a receiver attached to a serial device, configured 8N1.
func OpenSerial(ctx context.Context, path string, baudRate uint, logger logging.Logger) (Port, error) {
	if path == "" {
		return nil, errors.New("gps expected non-empty serial path")
	}
	options := serial.OpenOptions{
		PortName:              path,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: interCharacterTimeoutMs,
	}
	dev, err := serial.Open(options)
	if err != nil {
		return nil, err
	}
	return newSerialPort(dev, logger), nil
}

func newSerialPort(dev io.ReadCloser, logger logging.Logger) *SerialPort {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	p := &SerialPort{
		dev:        dev,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
		logger:     logger,
	}
	p.start()
	return p
}

func (p *SerialPort) start() {
	p.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer p.activeBackgroundWorkers.Done()
		chunk := make([]byte, ReadBufferSize)
		for {
			select {
			case <-p.cancelCtx.Done():
				return
			default:
			}

			n, err := p.dev.Read(chunk)
			if n > 0 {
				p.appendPending(chunk[:n])
			}
			if err == nil || errors.Is(err, io.EOF) {
				// An idle line times out with no bytes, which surfaces as EOF.
				continue
			}
			if p.cancelCtx.Err() != nil {
				return
			}
			p.logger.Errorf("can't read gps serial: %s", err)
			p.setLastError(err)
			return
		}
	})
}

func (p *SerialPort) appendPending(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, b...)
	if over := len(p.pending) - pendingLimit; over > 0 {
		p.pending = append(p.pending[:0], p.pending[over:]...)
	}
}

func (p *SerialPort) setLastError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastError == nil {
		p.lastError = err
	}
}

// DataAvailable reports whether a ReadData call has something to return, either bytes or a
// latched read error.
func (p *SerialPort) DataAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0 || p.lastError != nil
}

// ReadData moves up to len(buf) pending bytes into buf. Once the reader has failed, every call
// returns -1 and the latched error.
func (p *SerialPort) ReadData(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 && p.lastError != nil {
		return -1, p.lastError
	}
	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Close stops the background reader and closes the device.
func (p *SerialPort) Close() error {
	p.logger.Debug("closing gps serial port")
	p.cancelFunc()
	err := p.dev.Close()
	p.activeBackgroundWorkers.Wait()
	return err
}
