// Package postprocess - Postprocessing utilities for classification models.
package postprocess

// UnknownLabel is reported for class indices that have no entry in the label table.
const UnknownLabel = "unknown"

// Prediction represents a single ranked classification result.
type Prediction struct {
	// The human-readable class label.
	Label string `json:"label" yaml:"label"`
	// The softmax probability of the class expressed as a percentage in [0, 100].
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// The class index in the model output.
	Index int `json:"index" yaml:"index"`
	// Degraded is set when the label table had no entry for Index.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}
