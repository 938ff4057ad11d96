// Package detector defines the object detector behind the close-call reporter: a digital
// interrupter input that reports whether something is in range.
package detector

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

// A Detector reports whether an object is currently within range. ObjectDetected has no error
// channel: a failed hardware read is logged by the implementation and reported as "clear".
type Detector interface {
	ObjectDetected(ctx context.Context) bool
	Close() error
}

// Constructor builds a Detector of one model from its config.
type Constructor func(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Detector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a detector model available by name. Registering the same model twice panics.
func Register(model string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[model]; ok {
		panic(errors.Errorf("detector model %q already registered", model))
	}
	registry[model] = constructor
}

// Models returns the registered model names in sorted order.
func Models() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	models := make([]string, 0, len(registry))
	for model := range registry {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// New builds the detector described by `conf`.
func New(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Detector, error) {
	registryMu.RLock()
	constructor, ok := registry[conf.Model]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown detector model %q, expected one of %v", conf.Model, Models())
	}
	return constructor(ctx, conf, logger)
}

// levelReader is a single digital input line.
type levelReader interface {
	// Read returns true when the line is high.
	Read(ctx context.Context) (bool, error)
	Close() error
}

// pinDetector turns a digital level into a detection. The Grove distance interrupter pulls its
// output low while an object is in range, hence activeLow.
type pinDetector struct {
	pin       levelReader
	activeLow bool
	logger    logging.Logger
}

func newPinDetector(pin levelReader, activeLow bool, logger logging.Logger) *pinDetector {
	return &pinDetector{pin: pin, activeLow: activeLow, logger: logger}
}

func (d *pinDetector) ObjectDetected(ctx context.Context) bool {
	high, err := d.pin.Read(ctx)
	if err != nil {
		d.logger.Warnw("failed to read detector pin, treating area as clear", "error", err)
		return false
	}
	return high != d.activeLow
}

func (d *pinDetector) Close() error {
	return d.pin.Close()
}
