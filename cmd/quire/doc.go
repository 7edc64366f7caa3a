// Command quire fetches the latest magazine editions from a subscriber-only
// site, packages each one as an EPUB and mails it to a set of e-reader
// addresses, remembering what was already delivered.
//
// Run "quire run" for the recent editions, "quire run --edition edicao-18"
// for one, and "quire history" to inspect the delivery ledger.
package main
