package edition

import (
	"fmt"
	"time"

	"quire/internal/textutil"
)

// Artifact is the built e-book for one edition.
type Artifact struct {
	EditionID string
	Path      string
	// AttachmentName is the human-friendly filename used when mailing.
	AttachmentName string
	ModTime        time.Time
	Reused         bool
}

// AttachmentName renders "<title> (<author>).epub".
func AttachmentName(title, author string) string {
	return textutil.SanitizeFileName(fmt.Sprintf("%s (%s).epub", title, author))
}
