// Package fileutil holds small filesystem helpers for copying files and
// publishing files or directories atomically.
package fileutil
