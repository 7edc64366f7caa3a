// Package edition defines the value types that flow through the pipeline:
// Edition (discovered issue), ContentSet (scraped material on disk) and
// Artifact (the built e-book), plus the Workspace that maps edition IDs to
// their deterministic on-disk locations.
package edition
