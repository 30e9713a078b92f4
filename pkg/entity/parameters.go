package entity

import (
	"encoding/json"
	"fmt"
)

// Parameters is a JSON-compatible mapping sent to the API on write requests.
// Values are strings, numbers, nested Parameters, or slices of those.
type Parameters map[string]any

// ParameterEncoder is implemented by models that have a write representation.
type ParameterEncoder interface {
	ToParameters() Parameters
}

// JSON encodes the parameters as a request body.
func (p Parameters) JSON() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	return b, nil
}

// encodeAll maps a slice of encoders to their parameters, keeping nil-ness.
func encodeAll[T ParameterEncoder](items []T) []Parameters {
	if items == nil {
		return nil
	}
	out := make([]Parameters, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToParameters())
	}
	return out
}
