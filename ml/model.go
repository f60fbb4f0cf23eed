package ml

import "errors"

// RegressionModel is the surface the predictor needs from a loaded model.
type RegressionModel interface {
	Predict(features []float64) (float64, error)
	FeatureCount() int
	FeatureNames() []string
}

// ImportanceProvider is implemented by model types that expose
// per-feature importance scores. Models without it cause
// FeatureImportances to fail rather than fabricate values.
type ImportanceProvider interface {
	Importances() []float64
}

// ModelSource produces the shared model handle. *Store is the normal
// implementation; tests substitute fakes.
type ModelSource interface {
	Get() (RegressionModel, error)
}

var (
	ErrModelNotFound    = errors.New("model artifact not found")
	ErrModelCorrupt     = errors.New("model artifact corrupt or incompatible")
	ErrInvalidInput     = errors.New("invalid feature vector")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrNoImportances    = errors.New("model does not support feature importances")
)
