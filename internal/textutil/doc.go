// Package textutil provides small text helpers for filenames, slugs and
// human-readable titles.
package textutil
