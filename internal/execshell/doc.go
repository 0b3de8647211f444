// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging and lifecycle notifications via ShellExecutor,
// exposes OSCommandRunner for default process execution, and defines the
// abstractions used throughout pveup to run apt-get, dpkg-query, systemctl,
// pveversion, and release checklist binaries in a testable manner.
package execshell
