// Package preflight provides readiness checks for the filesystem paths,
// binaries, and remote services quire depends on.
//
// These checks run in two contexts:
//   - "quire run" calls CheckSystemDeps before acquiring a session so a missing
//     converter fails fast instead of after an edition has been scraped.
//   - "quire doctor" calls RunAll and ProbeConverter to display full health.
//
// Network checks make a single attempt with a short timeout.
package preflight
