package models

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is returned when an audit request fails validation.
var ErrInvalidRequest = errors.New("invalid audit request")

// Metric selects the score used to rank patterns.
type Metric string

const (
	// MetricDivergence ranks by the KL-style divergence score.
	MetricDivergence Metric = "divergence"
	// MetricDifference ranks by the absolute probability difference.
	MetricDifference Metric = "difference"
)

// AuditStatus records how an audit run ended.
type AuditStatus string

const (
	// StatusComplete means the search finished.
	StatusComplete AuditStatus = "complete"
	// StatusTimeout means the search was cut off and holds partial results.
	StatusTimeout AuditStatus = "timeout"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// AuditRequest describes one pattern search over a model.
type AuditRequest struct {
	Metric      Metric  `json:"metric" yaml:"metric" validate:"required,oneof=divergence difference"`
	TargetValue int     `json:"target_value" yaml:"target_value" validate:"min=0,max=1"`
	Threshold   float64 `json:"threshold" yaml:"threshold" validate:"gte=0"`
	// Sensitive overrides the model's sensitive flags when non-nil.
	Sensitive  []int         `json:"sensitive,omitempty" yaml:"sensitive" validate:"omitempty,dive,gte=0"`
	K          int           `json:"k" yaml:"k" validate:"min=1,max=100000"`
	StopAfterK bool          `json:"stop_after_k,omitempty" yaml:"stop_after_k"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout" validate:"gte=0"`
}

// Validate checks field constraints. numFeatures bounds sensitive indices
// when positive.
func (r *AuditRequest) Validate(numFeatures int) error {
	if err := requestValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if numFeatures > 0 {
		seen := make(map[int]bool, len(r.Sensitive))
		for _, id := range r.Sensitive {
			if id >= numFeatures {
				return fmt.Errorf("%w: sensitive feature %d out of range [0,%d)", ErrInvalidRequest, id, numFeatures)
			}
			if seen[id] {
				return fmt.Errorf("%w: sensitive feature %d listed twice", ErrInvalidRequest, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// AuditResult is a stored audit run with its reported patterns, highest score first.
type AuditResult struct {
	ID           string       `json:"id"`
	ModelID      string       `json:"model_id,omitempty"`
	ModelName    string       `json:"model_name"`
	ModelPath    string       `json:"model_path,omitempty"`
	ModelMtime   int64        `json:"model_mtime,omitempty"`
	ModelSize    int64        `json:"model_size,omitempty"`
	Request      AuditRequest `json:"request"`
	FeatureNames []string     `json:"feature_names,omitempty"`
	Patterns     []*Pattern   `json:"patterns"`
	VisitedNodes int          `json:"visited_nodes"`
	DurationMs   int64        `json:"duration_ms"`
	Status       AuditStatus  `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
