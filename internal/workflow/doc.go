// Package workflow drives editions through scrape, build, and deliver.
//
// The Orchestrator acquires one content-source session per run, discovers the
// edition list (retrying transient index failures), then walks editions in
// discovery order. Editions already in the ledger are reported as done and do
// not count toward the limit. Each remaining edition moves through
//
//	discovered → scraping → scraped → building → built → delivering → delivered
//
// and lands in failed(stage) when a stage errors. Per-edition failures are
// recorded and the run continues; authentication, discovery, and ledger I/O
// failures abort the run and are returned alongside the partial report.
//
// The ledger is written only after every configured destination has confirmed
// delivery, in a single transaction, so an interrupted run re-delivers on the
// next invocation rather than forgetting an edition.
package workflow
