// Package systemdcli adapts systemctl invocations to the service controller
// interface the convergence run consumes.
package systemdcli
