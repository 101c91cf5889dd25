//go:build dev
// +build dev

package build

import "os"

// Deployment specifies a development build.
const Deployment = Development

// LogLevel is the log level used by stdout loggers in unit tests. It can be
// overridden with the SEEDDB_LOGLEVEL environment variable.
var LogLevel = func() string {
	if level := os.Getenv("SEEDDB_LOGLEVEL"); level != "" {
		return level
	}

	return "info"
}()
