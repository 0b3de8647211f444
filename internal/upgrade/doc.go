// Package upgrade orchestrates the idempotent release convergence run. A run
// probes the installed generation, gates on the preflight checklist, migrates
// repository declarations, performs the distribution upgrade, and normalizes
// post-install state. Failures before the migration starts are fatal and
// mutate nothing; later failures degrade to tagged warnings so a re-run can
// finish the remaining work.
package upgrade
