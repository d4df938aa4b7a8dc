package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Assignment fixes one feature to a binary value.
type Assignment struct {
	Feature int `json:"feature"`
	Value   int `json:"value"`
}

// Pattern is a partial assignment split into base (context) and sensitive
// parts, with the joint probabilities of the target decision and its
// complement under base alone (DY) and under base plus sensitive (DXY).
type Pattern struct {
	Base    []Assignment `json:"base"`
	Sens    []Assignment `json:"sens"`
	PDY     float64      `json:"p_dy"`
	PNotDY  float64      `json:"p_not_dy"`
	PDXY    float64      `json:"p_dxy"`
	PNotDXY float64      `json:"p_not_dxy"`
	Score   float64      `json:"score"`
}

// PBase returns P(target | base).
func (p *Pattern) PBase() float64 {
	return p.PDY / (p.PDY + p.PNotDY)
}

// PAll returns P(target | base, sens).
func (p *Pattern) PAll() float64 {
	return p.PDXY / (p.PDXY + p.PNotDXY)
}

// Clone returns a deep copy with its own assignment slices.
func (p *Pattern) Clone() *Pattern {
	c := *p
	c.Base = append([]Assignment(nil), p.Base...)
	c.Sens = append([]Assignment(nil), p.Sens...)
	return &c
}

// patternFields drops Pattern's methods so it can be encoded without
// recursing into MarshalJSON.
type patternFields Pattern

// patternJSON shadows Score with a form that can carry infinity.
type patternJSON struct {
	patternFields
	Score Score `json:"score"`
}

// MarshalJSON encodes the pattern with an infinite score written as a string.
func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(patternJSON{patternFields: patternFields(p), Score: Score(p.Score)})
}

// UnmarshalJSON accepts scores written as numbers or as "+Inf" and "-Inf".
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var w patternJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Pattern(w.patternFields)
	p.Score = float64(w.Score)
	return nil
}

// Score is a pattern score in JSON. A deterministic sensitive feature can
// push the divergence score to +Inf, which a JSON number cannot hold.
type Score float64

// MarshalJSON writes finite scores as numbers, infinities as "+Inf" or
// "-Inf" and NaN as null.
func (s Score) MarshalJSON() ([]byte, error) {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 0):
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		return json.Marshal(v)
	}
}

// UnmarshalJSON reads what MarshalJSON writes.
func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = Score(math.NaN())
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		*s = Score(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Score(v)
	return nil
}
