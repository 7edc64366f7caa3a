// Package builder turns a complete content set into an EPUB with an external
// document converter (pandoc by default).
//
// Chapters, images and the cover are staged in a throwaway build directory;
// WebP images are re-encoded as JPEG and the cover is fitted to the
// configured bounds. The converter writes into a temporary file next to the
// final artifact, which is renamed into place only after a successful, non
// empty build. An existing artifact is reused while it is at least as new as
// the content set it was built from.
package builder
