package ml

import (
	"fmt"
	"math"
	"sort"
)

// Importance pairs a feature name with its score.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// Predictor validates input shape and delegates to the model produced
// by its source. It holds no state of its own.
type Predictor struct {
	source ModelSource
}

func NewPredictor(source ModelSource) *Predictor {
	return &Predictor{source: source}
}

// Predict returns the raw model output for one observation. No
// rounding or clamping is applied.
func (p *Predictor) Predict(obs Observation) (float64, error) {
	return p.PredictVector(FeatureVector(obs))
}

// PredictVector validates the vector before any model invocation: the
// length must match the trained feature count and every value must be
// a finite number.
func (p *Predictor) PredictVector(features []float64) (float64, error) {
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(features), FeatureCount)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: feature %d is not finite", ErrInvalidInput, i)
		}
	}

	model, err := p.source.Get()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return model.Predict(features)
}

// FeatureImportances returns (feature, score) pairs ordered by
// descending score. Models that do not expose importances fail with
// ErrNoImportances.
func (p *Predictor) FeatureImportances() ([]Importance, error) {
	model, err := p.source.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	provider, ok := model.(ImportanceProvider)
	if !ok {
		return nil, ErrNoImportances
	}
	scores := provider.Importances()
	names := model.FeatureNames()
	if len(scores) != len(names) {
		return nil, fmt.Errorf("%w: %d scores for %d features", ErrModelCorrupt, len(scores), len(names))
	}

	ranked := make([]Importance, len(names))
	for i, name := range names {
		ranked[i] = Importance{Feature: name, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}
