package modelio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/fairscan/internal/models"
)

// parseParams reads the whitespace-separated parameter format: the number
// of features, the decision prior P(d=0) P(d=1), then four parameters per
// feature in models.Feature.Params order.
func parseParams(content []byte) (*models.Model, error) {
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty parameter file", models.ErrInvalidModel)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad feature count %q", models.ErrInvalidModel, fields[0])
	}
	want := 1 + 2 + 4*n
	if len(fields) != want {
		return nil, fmt.Errorf("%w: expected %d values for %d features, got %d", models.ErrInvalidModel, want, n, len(fields))
	}

	values := make([]float64, 0, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", models.ErrInvalidModel, i+1, err)
		}
		values = append(values, v)
	}

	m := &models.Model{
		Prior:    [2]float64{values[0], values[1]},
		Features: make([]models.Feature, n),
	}
	for i := range m.Features {
		copy(m.Features[i].Params[:], values[2+4*i:6+4*i])
	}
	return m, nil
}

// FormatParams renders m in the whitespace-separated parameter format.
func FormatParams(m *models.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", m.NumFeatures())
	fmt.Fprintf(&b, "%s %s\n", formatFloat(m.Prior[0]), formatFloat(m.Prior[1]))
	for _, f := range m.Features {
		fmt.Fprintf(&b, "%s %s %s %s\n",
			formatFloat(f.Params[0]), formatFloat(f.Params[1]), formatFloat(f.Params[2]), formatFloat(f.Params[3]))
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
