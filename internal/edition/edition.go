package edition

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"quire/internal/textutil"
)

// ArticleRef points at one article page in source order.
type ArticleRef struct {
	Index int
	URL   string
}

// Edition is one discovered issue of the publication.
type Edition struct {
	ID       string
	Title    string
	Number   int
	Position int
	URL      string
	CoverURL string
	Articles []ArticleRef
}

// New builds an Edition from its slug, deriving the display title and the
// ordering key.
func New(id, url string, position int) Edition {
	id = strings.TrimSpace(id)
	return Edition{
		ID:       id,
		Title:    TitleFromSlug(id),
		Number:   NumberFromSlug(id),
		Position: position,
		URL:      url,
	}
}

// ValidateID rejects slugs that could escape the workspace directories.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("edition id is empty")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("edition id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

// TitleFromSlug renders "edicao-18" as "Edição 18".
func TitleFromSlug(slug string) string {
	title := textutil.TitleWords(slug, language.BrazilianPortuguese)
	return strings.ReplaceAll(title, "Edicao", "Edição")
}

// NumberFromSlug returns the trailing number of a slug, or 0.
func NumberFromSlug(slug string) int {
	end := len(slug)
	start := end
	for start > 0 && slug[start-1] >= '0' && slug[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.Atoi(slug[start:end])
	if err != nil {
		return 0
	}
	return n
}
