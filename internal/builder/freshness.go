package builder

import "time"

// Fresh is the artifact reuse policy: an artifact may be reused when it is
// not older than the scrape it was built from nor the metadata file that
// describes that scrape.
func Fresh(artifactMod, scrapedAt, metadataMod time.Time) bool {
	return !artifactMod.Before(scrapedAt) && !artifactMod.Before(metadataMod)
}
