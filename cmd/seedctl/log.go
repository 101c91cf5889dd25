package main

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/overlaynet/seeddb/build"
	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/seedcfg"
	"github.com/overlaynet/seeddb/seeddb"
	"github.com/overlaynet/seeddb/seedsync"
	"github.com/overlaynet/seeddb/tierstore"
)

// Subsystem defines the logging code of the command itself.
const Subsystem = "SCTL"

// log is the logger of the command, replaced once logging is set up.
var log = build.NewSubLogger(Subsystem, nil)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager, shutdown func()) {
	AddSubLogger(root, Subsystem, shutdown, func(logger btclog.Logger) {
		log = logger
	})
	AddSubLogger(root, seed.Subsystem, shutdown, seed.UseLogger)
	AddSubLogger(root, tierstore.Subsystem, shutdown, tierstore.UseLogger)
	AddSubLogger(root, seeddb.Subsystem, shutdown, seeddb.UseLogger)
	AddSubLogger(root, seedsync.Subsystem, shutdown, seedsync.UseLogger)
	AddSubLogger(root, seedcfg.Subsystem, shutdown, seedcfg.UseLogger)
}

// genSubLogger creates a logger for a subsystem. The shutdown callback is
// invoked when a critical error is logged.
func genSubLogger(root *build.SubLoggerManager,
	shutdown func()) func(string) btclog.Logger {

	return func(tag string) btclog.Logger {
		return root.GenSubLogger(tag, shutdown)
	}
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	shutdown func(), useLoggers ...func(btclog.Logger)) {

	// genSubLogger will return a callback for creating a logger instance,
	// which we will give to the root logger.
	genLogger := genSubLogger(root, shutdown)

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, genLogger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
