// Package utils exposes reusable helpers consumed across the CLI.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, environment files, and zap logging, plus small context
// and writer utilities shared by command wiring.
package utils
