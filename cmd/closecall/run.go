package main

import (
	"context"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/devices"
	"go.viam.com/closecall/logging"
	"go.viam.com/closecall/notify"
	"go.viam.com/closecall/notify/datastore"
	"go.viam.com/closecall/notify/mqtt"
	"go.viam.com/closecall/platform"
	"go.viam.com/closecall/reporter"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 1
	shutdownGrace   = 3 * time.Second
)

// env holds everything run reaches outside the process.
type env struct {
	loadConfig    func(logging.Logger) (*config.Config, error)
	identify      func() (utils.StringSet, error)
	openDevices   func(context.Context, *config.Config, logging.Logger) (*devices.Devices, error)
	openSinks     func(*config.Config, logging.Logger) ([]notify.Sink, error)
	clock         clock.Clock
	signals       <-chan os.Signal
	shutdownGrace time.Duration
}

func newEnv(signals <-chan os.Signal) env {
	return env{
		loadConfig:    config.Load,
		identify:      platform.Identify,
		openDevices:   devices.Open,
		openSinks:     openSinks,
		clock:         clock.New(),
		signals:       signals,
		shutdownGrace: shutdownGrace,
	}
}

// run starts the reporter and blocks until a signal arrives or `ctx` ends. It returns the process
// exit status.
func run(ctx context.Context, e env, logger logging.Logger) int {
	cfg, err := e.loadConfig(logger)
	if err != nil {
		logger.Errorw("invalid configuration", "error", err)
		return exitFailure
	}
	closeLog, err := configureLogger(logger, cfg.Log)
	if err != nil {
		logger.Errorw("invalid log configuration", "error", err)
		return exitFailure
	}
	defer closeLog()

	board, code, ok := checkPlatform(cfg.Platform, e.identify, logger)
	if !ok {
		return code
	}
	resolveDetectorPin(&cfg.Detector, board, logger)

	devs, err := e.openDevices(ctx, cfg, logger.Sublogger("devices"))
	if err != nil {
		logger.Errorw("failed to open devices", "error", err)
		return exitFailure
	}
	defer func() {
		if err := devs.Close(); err != nil {
			logger.Warnw("error releasing devices", "error", err)
		}
	}()

	format, err := notify.ParsePayloadFormat(cfg.Reporter.PayloadFormat)
	if err != nil {
		logger.Error(err)
		return exitFailure
	}
	sinks, err := e.openSinks(cfg, logger.Sublogger("notify"))
	if err != nil {
		logger.Errorw("failed to set up notification sinks", "error", err)
		return exitFailure
	}
	notifier := notify.NewNotifier(format, logger.Sublogger("notify"), sinks...)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warnw("error closing notification sinks", "error", err)
		}
	}()

	rep := reporter.New(devs.Detector, devs.GPS, notifier, e.clock, cfg.Reporter, logger.Sublogger("reporter"))

	cancelCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	utils.PanicCapturingGoWithCallback(func() {
		runErr <- rep.Run(cancelCtx)
	}, func(err interface{}) {
		runErr <- errors.Errorf("reporter panicked: %v", err)
	})

	status := exitOK
	select {
	case sig := <-e.signals:
		logger.Infow("received signal, exiting", "signal", sig.String())
		status = exitInterrupted
		cancel()
		select {
		case <-runErr:
		case <-time.After(e.shutdownGrace):
			logger.Warn("reporter did not stop in time, releasing devices anyway")
		}
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Errorw("reporter stopped", "error", err)
			status = exitFailure
		} else {
			logger.Infow("reporter stopped", "error", err)
		}
	}

	// The deferred Close is a no-op once this has run.
	if err := devs.Close(); err != nil {
		logger.Warnw("error releasing devices", "error", err)
	}
	stats := rep.Stats()
	logger.Infow("shut down", "cycles", stats.Cycles, "notifications", stats.Notifications)
	return status
}

// configureLogger applies the configured level and, when a file is named, adds a rotating file
// appender. The returned func closes the file.
func configureLogger(logger logging.Logger, cfg config.LogConfig) (func(), error) {
	if cfg.Level != "" {
		level, err := logging.LevelFromString(cfg.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	if cfg.File == "" {
		return func() { utils.UncheckedError(logger.Sync()) }, nil
	}
	appender := logging.NewFileAppender(logging.FileAppenderConfig{Filename: cfg.File})
	logger.AddAppender(appender)
	logger.Infow("logging to file", "path", cfg.File)
	return func() {
		utils.UncheckedError(logger.Sync())
		utils.UncheckedError(appender.Close())
	}, nil
}

// checkPlatform refuses to start on boards the kit does not support, unless configured to skip
// the check.
func checkPlatform(
	cfg config.PlatformConfig,
	identify func() (utils.StringSet, error),
	logger logging.Logger,
) (platform.Platform, int, bool) {
	if cfg.SkipCheck {
		logger.Info("platform check skipped")
		return platform.Unknown, 0, true
	}
	identities, err := identify()
	if err != nil {
		logger.Errorw("cannot identify platform", "error", err)
		return platform.Unknown, platform.ExitInvalidPlatform, false
	}
	p, err := platform.Check(identities, cfg.Supported)
	if err != nil {
		logger.Errorw("Error: Invalid platform, exiting", "error", err)
		return platform.Unknown, platform.ExitInvalidPlatform, false
	}
	logger.Infow("platform detected", "platform", p.String())
	return p, 0, true
}

// resolveDetectorPin rewrites an Arduino header pin name to the board's Linux GPIO number. The
// gpiochip model addresses lines by chip offset and is left alone.
func resolveDetectorPin(cfg *config.DetectorConfig, board platform.Platform, logger logging.Logger) {
	if cfg.Model == "gpiochip" {
		return
	}
	if line, ok := platform.HeaderLine(board, cfg.Pin); ok {
		logger.Infow("detector header pin resolved", "pin", cfg.Pin, "line", line, "platform", board.String())
		cfg.Pin = line
	}
}

// openSinks builds a sink for every configured endpoint.
func openSinks(cfg *config.Config, logger logging.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if cfg.MQTT.Enabled() {
		sink, err := mqtt.New(cfg.MQTT, logger.Sublogger("mqtt"))
		if err != nil {
			return nil, errors.Wrap(err, "mqtt")
		}
		sinks = append(sinks, sink)
	} else {
		logger.Info("MQTT_SERVER not set, mqtt notifications disabled")
	}
	if cfg.Datastore.Enabled() {
		sinks = append(sinks, datastore.New(cfg.Datastore, logger.Sublogger("datastore")))
	} else {
		logger.Info("SERVER not set, datastore notifications disabled")
	}
	return sinks, nil
}
