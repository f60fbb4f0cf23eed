package ml

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func saveObservationForest(t *testing.T) string {
	t.Helper()
	features := make([][]float64, 0, 100)
	labels := make([]float64, 0, 100)
	for i := 0; i < 100; i++ {
		obs := Observation{
			SensorCO:         float64(800 + i*5),
			SensorNMHC:       float64(700 + i*3),
			SensorNOx:        float64(900 - i*2),
			SensorNO2:        float64(1100 + i),
			SensorO3:         float64(750 + i*4),
			Temperature:      15 + float64(i%20),
			RelativeHumidity: 40 + float64(i%50),
			AbsoluteHumidity: 1.0,
			Year:             2004,
			Month:            float64(1 + i%12),
			Day:              float64(1 + i%28),
			Hour:             float64(i % 24),
			DayOfWeek:        float64(i % 7),
			WeekOfYear:       float64(1 + i%52),
		}
		features = append(features, FeatureVector(obs))
		labels = append(labels, 50+float64(i))
	}

	forest, err := TrainForest(features, labels, FeatureNames(), TrainConfig{Trees: 5, MaxDepth: 5, Seed: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "aqi.model")
	if err := forest.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestStoreLoadsOnce(t *testing.T) {
	store := NewStore(saveObservationForest(t))

	first, err := store.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := store.Get()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("expected the identical cached handle")
		}
	}
}

func TestStoreMissingArtifact(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.model"))

	if _, err := store.Get(); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if err := store.Preload(); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound from preload, got %v", err)
	}

	predictor := NewPredictor(store)
	_, err := predictor.Predict(Observation{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected the store error to be wrapped, got %v", err)
	}
}

func TestStorePredictorEndToEnd(t *testing.T) {
	store := NewStore(saveObservationForest(t))
	predictor := NewPredictor(store)

	// All-zero observation is still a valid 14-field input.
	value, err := predictor.Predict(Observation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("expected a finite prediction, got %v", value)
	}

	ranked, err := predictor.FeatureImportances()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != FeatureCount {
		t.Fatalf("expected %d importances, got %d", FeatureCount, len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Fatalf("importances not sorted descending at %d", i)
		}
	}
}
