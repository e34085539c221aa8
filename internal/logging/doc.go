// Package logging provides structured JSON logging with size-based file
// rotation. By default logs go to stderr only; file logging is opt-in via
// configuration so library consumers keep control of their log destinations.
package logging
