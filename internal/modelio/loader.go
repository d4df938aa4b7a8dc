// Package modelio loads naive Bayes models from parameter, YAML and Excel files.
package modelio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/fairscan/internal/models"
)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".params", ".txt", ".yaml", ".yml", ".xlsx"}

// Supported reports whether path has an extension Load understands.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Loader reads model files.
type Loader struct{}

// NewLoader returns a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the model at path. The format is chosen by extension:
// .yaml and .yml hold a YAML model, .xlsx a parameter sheet, and anything
// else the whitespace-separated parameter format. A model without a name
// is named after the file. The model is validated before it is returned.
func (l *Loader) Load(path string) (*models.Model, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	m, err := l.LoadBytes(content, strings.ToLower(ext))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", base, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(base, ext)
	}
	return m, nil
}

// LoadBytes parses content based on the given extension.
// ext should include the leading dot (e.g. ".yaml").
func (l *Loader) LoadBytes(content []byte, ext string) (*models.Model, error) {
	var (
		m   *models.Model
		err error
	)
	switch ext {
	case ".yaml", ".yml":
		m, err = parseYAML(content)
	case ".xlsx":
		m, err = parseExcel(content)
	default:
		m, err = parseParams(content)
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
