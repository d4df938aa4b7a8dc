package modelio

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/fairscan/internal/models"
)

func parseYAML(content []byte) (*models.Model, error) {
	var m models.Model
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", models.ErrInvalidModel, err)
	}
	return &m, nil
}

// MarshalYAML renders m as a YAML model file.
func MarshalYAML(m *models.Model) ([]byte, error) {
	return yaml.Marshal(m)
}
