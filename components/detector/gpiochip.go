//go:build linux

package detector

import (
	"context"
	"strconv"
	"sync"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

const lineConsumer = "closecall-detector"

func init() {
	Register("gpiochip", newGPIOChipDetector)
}

// chipLine reads one line of a GPIO character device using the ioctl interface, indirectly by
// way of mkch's gpio package.
type chipLine struct {
	mu   sync.Mutex
	line *gpio.Line
}

func newGPIOChipDetector(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Detector, error) {
	offset, err := strconv.ParseUint(conf.Pin, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "bad gpio line offset %q", conf.Pin)
	}

	chip, err := gpio.OpenChip(conf.Chip)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLine(uint32(offset), 0, gpio.Input, lineConsumer)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open line %d on %s", offset, conf.Chip)
	}
	logger.Debugw("detector line opened", "model", "gpiochip", "chip", conf.Chip, "offset", offset)
	return newPinDetector(&chipLine{line: line}, conf.ActiveLow, logger), nil
}

func (c *chipLine) Read(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return false, errors.New("gpio line is closed")
	}
	value, err := c.line.Value()
	if err != nil {
		return false, err
	}
	// We'd expect value to be either 0 or 1, but any non-zero value should be considered high.
	return value != 0, nil
}

func (c *chipLine) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return nil
	}
	err := c.line.Close()
	c.line = nil
	return err
}
