package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeMetrics serializes free-form session metrics. Empty maps are stored as NULL.
func EncodeMetrics(m map[string]float64) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metrics: %w", err)
	}
	return b, nil
}

// DecodeMetrics parses stored metrics. NULL or empty input yields a nil map.
func DecodeMetrics(b []byte) (map[string]float64, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var m map[string]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	return m, nil
}
