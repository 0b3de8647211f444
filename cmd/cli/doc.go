// Package cli constructs the pveup command-line interface, wiring the
// convergence command, configuration loader, and structured logging
// primitives. It exposes helpers to build reusable application instances and
// to execute the command as a reusable library.
package cli
