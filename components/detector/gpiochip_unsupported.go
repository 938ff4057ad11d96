//go:build !linux

package detector

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

func init() {
	Register("gpiochip", func(context.Context, config.DetectorConfig, logging.Logger) (Detector, error) {
		return nil, errors.New("gpiochip detectors are only supported on linux")
	})
}
