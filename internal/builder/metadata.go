package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const metadataFileName = "metadata.yaml"

// bookMetadata is the converter's metadata file.
type bookMetadata struct {
	Title      string `yaml:"title"`
	Author     string `yaml:"author"`
	Lang       string `yaml:"lang"`
	Date       string `yaml:"date"`
	Publisher  string `yaml:"publisher,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`
	CoverImage string `yaml:"cover-image,omitempty"`
}

func writeBookMetadata(dir string, meta bookMetadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode %s: %w", metadataFileName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metadataFileName, err)
	}
	return nil
}
