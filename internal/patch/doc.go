// Package patch applies marker-guarded textual patches exactly once and
// writes the persistent helper artifacts the patches depend on.
package patch
