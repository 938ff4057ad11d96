// Package main runs the close-call reporter: it watches a Grove distance interrupter and, when
// something comes close, publishes the time and GPS location to MQTT and a REST datastore.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/closecall/logging"
)

var logger = logging.NewLogger("closecall")

func main() {
	logging.ReplaceGlobal(logger)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	os.Exit(run(context.Background(), newEnv(signals), logger))
}
