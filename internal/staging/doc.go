// Package staging reclaims disk space under the content and e-book
// directories.
//
// Scrapes write into hidden ".<id>.partial-*" siblings and rename them into
// place on success, so a crash leaves those behind. CleanPartial removes them
// once they are older than a grace period. PruneDelivered drops the content
// set and e-book of editions the ledger already records as delivered.
package staging
