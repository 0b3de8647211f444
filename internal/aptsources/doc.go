// Package aptsources loads APT repository declarations, rewrites release
// tokens in place, and converges legacy one-line files onto the structured
// deb822 format. Migrations are idempotent: converged systems see no writes,
// superseded legacy files are renamed aside and never deleted, and the
// subscription channel policy keeps the paid channel disabled ahead of its
// free replacement.
package aptsources
