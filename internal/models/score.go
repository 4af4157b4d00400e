package models

// CompositeScore is a pure weighted aggregation of named sub-scores. It has
// no identity and no lifecycle; identical inputs always reproduce it.
type CompositeScore struct {
	Value     float64            `json:"value"`
	Breakdown map[string]float64 `json:"breakdown"`
	Weights   map[string]float64 `json:"weights"`
}
