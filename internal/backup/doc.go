// Package backup snapshots mutable files into a dated directory before the
// convergence run alters them, creating at most one snapshot per calendar day.
package backup
