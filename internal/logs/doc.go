// Package logs reads the JSON log file that every quire command mirrors its
// records into.
//
// Tail returns the last N lines and the offset to resume from. Follow polls
// that offset for appended lines until the context ends, which is what
// "quire logs --follow" uses. Format renders one JSON record in the same
// compact shape as console output.
package logs
