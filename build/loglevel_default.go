//go:build !stdlog
// +build !stdlog

package build

// LoggingType is a log type that writes through the sub logger constructor
// supplied by the caller.
const LoggingType = LogTypeDefault

// LogLevel specifies a default log level of info.
const LogLevel = "info"
