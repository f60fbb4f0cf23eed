package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func trainTestForest(t *testing.T) *Forest {
	t.Helper()
	features := make([][]float64, 0, 200)
	labels := make([]float64, 0, 200)
	for i := 0; i < 200; i++ {
		x := float64(i % 50)
		y := float64((i * 7) % 30)
		features = append(features, []float64{x, y})
		labels = append(labels, 3*x+0.5*y)
	}

	forest, err := TrainForest(features, labels, []string{"x", "y"}, TrainConfig{Trees: 10, MaxDepth: 6, Seed: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return forest
}

func TestForestTrainPredict(t *testing.T) {
	forest := trainTestForest(t)

	value, err := forest.Predict([]float64{40, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3*40 + 0.5*10 = 125; a shallow forest lands in the neighborhood.
	if value < 80 || value > 160 {
		t.Fatalf("prediction far off: got %v", value)
	}

	if _, err := forest.Predict([]float64{1, 2, 3}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestForestImportances(t *testing.T) {
	forest := trainTestForest(t)

	scores := forest.Importances()
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	total := scores[0] + scores[1]
	if total < 0.99 || total > 1.01 {
		t.Fatalf("expected normalized scores, sum=%v", total)
	}
	// x dominates the label, so it should dominate the importances.
	if scores[0] <= scores[1] {
		t.Fatalf("expected x to outrank y: %v", scores)
	}
}

func TestForestSaveLoad(t *testing.T) {
	forest := trainTestForest(t)
	path := filepath.Join(t.TempDir(), "forest.model")

	if err := forest.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := LoadForest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.TreeCount() != forest.TreeCount() {
		t.Fatalf("tree count mismatch: %d != %d", loaded.TreeCount(), forest.TreeCount())
	}

	want, err := forest.Predict([]float64{10, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := loaded.Predict([]float64{10, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("loaded forest diverges: %v != %v", got, want)
	}
}

func TestLoadForestMissing(t *testing.T) {
	_, err := LoadForest(filepath.Join(t.TempDir(), "nope.model"))
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestLoadForestCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.model")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadForest(path); !errors.Is(err, ErrModelCorrupt) {
		t.Fatalf("expected ErrModelCorrupt, got %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"format":99}`), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := LoadForest(path); !errors.Is(err, ErrModelCorrupt) {
		t.Fatalf("expected ErrModelCorrupt for unknown format, got %v", err)
	}
}
