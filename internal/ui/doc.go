// Package ui provides helpers for human-facing console interaction.
//
// It narrates command lifecycle events in concise messages while detailed
// telemetry flows through structured loggers, and prompts the operator for
// confirmation before the upgrade mutates the system.
package ui
