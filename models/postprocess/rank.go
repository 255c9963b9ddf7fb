package postprocess

import (
	"math"
	"sort"

	"github.com/nutritrack/foodvision/common"
	"github.com/pkg/errors"
)

// Softmax converts raw scores into probabilities that sum to 1.
//
// The maximum score is subtracted before exponentiation, and the computation
// runs in float64 so large logits neither overflow nor lose the ranking.
//
// Arguments:
//   - scores: The raw model scores.
//
// Returns:
//   - []float64: One probability per score, nil for an empty input.
func Softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}

	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		maxScore = math.Max(maxScore, float64(s))
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

// Rank turns a score vector into the top-k labelled predictions.
//
// Predictions are ordered by descending probability. Equal probabilities keep
// ascending index order. Indices beyond the label table are reported as
// UnknownLabel and flagged Degraded.
//
// Arguments:
//   - scores: The raw model scores, one per class.
//   - labels: The label table, indexed by class.
//   - k: The number of predictions to return, 1 <= k <= len(scores).
//
// Returns:
//   - []Prediction: Exactly k predictions.
//   - error: An error wrapping common.ErrInvalidArgument for an empty vector or an out-of-range k.
//
// @example
// predictions, err := Rank([]float32{5, 1, 1, 0}, []string{"cat", "dog", "bird", "fish"}, 2)
// // cat 95.84, dog 1.76
func Rank(scores []float32, labels []string, k int) ([]Prediction, error) {
	if len(scores) == 0 {
		return nil, errors.Wrap(common.ErrInvalidArgument, "score vector is empty")
	}
	if k < 1 || k > len(scores) {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "k=%d is outside [1, %d]", k, len(scores))
	}

	probs := Softmax(scores)

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	predictions := make([]Prediction, k)
	for i, idx := range order[:k] {
		p := Prediction{Index: idx, Confidence: probs[idx] * 100}
		if idx < len(labels) {
			p.Label = labels[idx]
		} else {
			p.Label = UnknownLabel
			p.Degraded = true
		}
		predictions[i] = p
	}

	return predictions, nil
}
