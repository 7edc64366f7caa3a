package edition

import (
	"os"
	"path/filepath"

	"quire/internal/config"
)

// Workspace maps edition IDs to their content and artifact locations.
type Workspace struct {
	ContentRoot  string
	ArtifactRoot string
}

// NewWorkspace derives the workspace from configuration.
func NewWorkspace(cfg *config.Config) Workspace {
	return Workspace{ContentRoot: cfg.Paths.ContentDir, ArtifactRoot: cfg.Paths.ArtifactDir}
}

// ContentDir returns the working content directory for id.
func (w Workspace) ContentDir(id string) string {
	return filepath.Join(w.ContentRoot, id)
}

// ArtifactPath returns the deterministic e-book path for id.
func (w Workspace) ArtifactPath(id string) string {
	return filepath.Join(w.ArtifactRoot, id+".epub")
}

// NewStagingDir creates an empty sibling directory for an in-progress scrape.
// Names start with a dot so they are never mistaken for a content set.
func (w Workspace) NewStagingDir(id string) (string, error) {
	if err := os.MkdirAll(w.ContentRoot, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(w.ContentRoot, "."+id+".partial-*")
}

// HasContent reports whether a complete content set exists for id.
func (w Workspace) HasContent(id string) bool {
	_, err := LoadContentSet(w.ContentDir(id))
	return err == nil
}
