// Package services defines the failure taxonomy and context helpers shared by
// the pipeline components.
//
// Key responsibilities:
//   - Sentinel markers (ErrAuth, ErrScrape, ErrLedgerIO, ...) plus the Wrap
//     helper that tags failures with stage and operation detail.
//   - RunFatal, which separates batch-aborting failures from per-edition ones.
//   - Context helpers that stamp edition IDs, stages, and run/correlation
//     identifiers for logging.
package services
