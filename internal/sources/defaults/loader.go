// Package defaults reads the static default bookmark set and filters it
// by region.
package defaults

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the default bookmark file
type Loader struct {
	filePath string
}

// NewLoader creates a new default set loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the file
func (l *Loader) Load() (Document, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON or YAML document
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse defaults: %w", err)
	}
	return doc, nil
}
