package modelio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hyperjump/fairscan/internal/models"
)

// Info describes the variables of a model: the decision and its target
// value, then each feature's name and whether it is sensitive.
type Info struct {
	TargetName   string
	TargetValue  int
	FeatureNames []string
	Sensitive    []int
}

// LoadInfo reads an info file. The first line is a header and is ignored.
// The next line holds the decision name and target value, and each line
// after that a feature name and a label, 1 marking a sensitive feature.
// Lines with fewer than two fields are skipped.
func LoadInfo(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open info file: %w", err)
	}
	defer file.Close()

	info := &Info{}
	scanner := bufio.NewScanner(file)
	line := 0
	sawTarget := false
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if line == 1 || len(fields) < 2 {
			continue
		}
		if !sawTarget {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad target value %q", models.ErrInvalidModel, line, fields[1])
			}
			info.TargetName, info.TargetValue = fields[0], v
			sawTarget = true
			continue
		}
		if fields[1] == "1" {
			info.Sensitive = append(info.Sensitive, len(info.FeatureNames))
		}
		info.FeatureNames = append(info.FeatureNames, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read info file: %w", err)
	}
	if !sawTarget {
		return nil, fmt.Errorf("%w: info file has no decision line", models.ErrInvalidModel)
	}
	return info, nil
}

// Apply copies names, sensitive flags and the target value onto m.
func (i *Info) Apply(m *models.Model) error {
	if len(i.FeatureNames) != m.NumFeatures() {
		return fmt.Errorf("%w: info lists %d features, model has %d",
			models.ErrInvalidModel, len(i.FeatureNames), m.NumFeatures())
	}
	for j := range m.Features {
		m.Features[j].Name = i.FeatureNames[j]
		m.Features[j].Sensitive = false
	}
	for _, id := range i.Sensitive {
		m.Features[id].Sensitive = true
	}
	m.TargetValue = i.TargetValue
	return m.Validate()
}
