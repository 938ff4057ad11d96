package detector

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

func init() {
	Register("periph", newPeriphDetector)
}

// periphPin reads a pin through the periph.io host drivers (sysfs or memory mapped, whichever the
// host supports).
type periphPin struct {
	pin gpio.PinIO
}

func newPeriphDetector(ctx context.Context, conf config.DetectorConfig, logger logging.Logger) (Detector, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "error initializing host")
	}

	pin := gpioreg.ByName(conf.Pin)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", conf.Pin)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "cannot configure pin %q as input", conf.Pin)
	}
	logger.Debugw("detector pin configured", "model", "periph", "pin", pin.Name(), "active_low", conf.ActiveLow)
	return newPinDetector(&periphPin{pin: pin}, conf.ActiveLow, logger), nil
}

func (p *periphPin) Read(ctx context.Context) (bool, error) {
	return p.pin.Read() == gpio.High, nil
}

func (p *periphPin) Close() error {
	return p.pin.Halt()
}
