// Package platform models the supported release generations and probes the
// read-only system facts a convergence run branches on.
package platform
