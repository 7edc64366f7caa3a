// Package scraper discovers editions and extracts their articles into
// working content sets.
//
// Pages are rendered through an authenticated Fetcher (normally a
// *session.Session), parsed with goquery, sanitised with bluemonday and
// converted to CommonMark. Each edition is written into a hidden staging
// directory and swapped into place only after metadata.json is complete, so a
// crash never leaves a content set that looks valid.
package scraper
