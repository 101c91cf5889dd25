//go:build !dev
// +build !dev

package build

// Deployment specifies a production build.
const Deployment = Production

// LogLevel is the default log level used by stdout loggers in unit tests.
const LogLevel = "info"
