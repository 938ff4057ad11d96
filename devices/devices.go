// Package devices owns the hardware handles of the reporter: the object detector and the GPS
// receiver. It opens them together and releases them exactly once.
package devices

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/closecall/components/detector"
	"go.viam.com/closecall/components/gps"
	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

// Devices holds the opened hardware.
type Devices struct {
	Detector detector.Detector
	GPS      *gps.Source

	released atomic.Bool
	logger   logging.Logger
}

// Open builds the devices with the serial GPS driver.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Devices, error) {
	return OpenWith(ctx, cfg, gps.OpenSerial, logger)
}

// OpenWith builds the devices, opening the GPS receiver through `opener`. A GPS setup failure is
// logged and tolerated so detection keeps working without location. A detector failure releases
// whatever was already opened and is returned.
func OpenWith(ctx context.Context, cfg *config.Config, opener gps.PortOpener, logger logging.Logger) (*Devices, error) {
	gpsLogger := logger.Sublogger("gps")
	source := gps.NewSource(cfg.GPS.Path, opener, gpsLogger)
	success := false
	defer func() {
		if !success {
			if err := source.Close(); err != nil {
				logger.Warnw("failed to release gps after setup error", "error", err)
			}
		}
	}()

	if cfg.GPS.Disabled {
		gpsLogger.Info("gps disabled, locations will report no data")
	} else if err := source.InitPort(ctx, cfg.GPS.BaudRate); err != nil {
		logger.Warn("continuing without gps")
	}

	det, err := detector.New(ctx, cfg.Detector, logger.Sublogger("detector"))
	if err != nil {
		return nil, err
	}
	success = true

	return &Devices{
		Detector: det,
		GPS:      source,
		logger:   logger,
	}, nil
}

// Close releases every handle. Only the first call does any work; it is safe to call from the
// signal path and the normal exit path at the same time.
func (d *Devices) Close() error {
	if !d.released.CompareAndSwap(false, true) {
		return nil
	}
	d.logger.Debug("releasing devices")
	return multierr.Combine(
		d.Detector.Close(),
		d.GPS.Close(),
	)
}

// Released reports whether Close has run.
func (d *Devices) Released() bool {
	return d.released.Load()
}
