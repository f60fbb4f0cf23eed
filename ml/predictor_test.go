package ml

import (
	"errors"
	"math"
	"testing"
)

type countingModel struct {
	calls int
	value float64
}

func (m *countingModel) Predict(features []float64) (float64, error) {
	m.calls++
	return m.value, nil
}

func (m *countingModel) FeatureCount() int { return FeatureCount }

func (m *countingModel) FeatureNames() []string { return FeatureNames() }

type importanceModel struct {
	countingModel
	scores []float64
}

func (m *importanceModel) Importances() []float64 { return m.scores }

type fakeSource struct {
	model RegressionModel
	err   error
}

func (s *fakeSource) Get() (RegressionModel, error) { return s.model, s.err }

func TestPredictDelegates(t *testing.T) {
	model := &countingModel{value: 87.5}
	predictor := NewPredictor(&fakeSource{model: model})

	value, err := predictor.Predict(Observation{Temperature: 25, RelativeHumidity: 50, AbsoluteHumidity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 87.5 {
		t.Fatalf("expected raw model output, got %v", value)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model invocation, got %d", model.calls)
	}
}

func TestPredictRejectsWrongLength(t *testing.T) {
	model := &countingModel{}
	predictor := NewPredictor(&fakeSource{model: model})

	short := make([]float64, FeatureCount-1)
	if _, err := predictor.PredictVector(short); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	long := make([]float64, FeatureCount+1)
	if _, err := predictor.PredictVector(long); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model invoked on invalid input: %d calls", model.calls)
	}
}

func TestPredictRejectsNonFinite(t *testing.T) {
	model := &countingModel{}
	predictor := NewPredictor(&fakeSource{model: model})

	vector := make([]float64, FeatureCount)
	vector[3] = math.NaN()
	if _, err := predictor.PredictVector(vector); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	vector[3] = math.Inf(1)
	if _, err := predictor.PredictVector(vector); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model invoked on invalid input: %d calls", model.calls)
	}
}

func TestFeatureImportancesSorted(t *testing.T) {
	scores := make([]float64, FeatureCount)
	for i := range scores {
		scores[i] = float64(i) / float64(FeatureCount)
	}
	model := &importanceModel{scores: scores}
	predictor := NewPredictor(&fakeSource{model: model})

	ranked, err := predictor.FeatureImportances()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != FeatureCount {
		t.Fatalf("expected %d entries, got %d", FeatureCount, len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Fatalf("not sorted descending at %d", i)
		}
	}
}

func TestFeatureImportancesUnsupported(t *testing.T) {
	predictor := NewPredictor(&fakeSource{model: &countingModel{}})

	if _, err := predictor.FeatureImportances(); !errors.Is(err, ErrNoImportances) {
		t.Fatalf("expected ErrNoImportances, got %v", err)
	}
}
