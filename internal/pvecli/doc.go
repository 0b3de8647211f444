// Package pvecli adapts platform-specific tooling (the version probe, the
// release checklist, and the cluster configuration) to the narrow interfaces
// the convergence run consumes.
package pvecli
