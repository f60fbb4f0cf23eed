package db

import (
	"path/filepath"
	"testing"
	"time"

	"aqicast/ml"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestSaveAndQueryPredictions(t *testing.T) {
	initTestDB(t)

	row := PredictionRow{
		Observation: ml.Observation{SensorCO: 1360, Temperature: 13.6, RelativeHumidity: 48.9},
		ObservedAt:  time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC),
		AQI:         112.5,
	}
	if err := SavePrediction(row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := QueryPredictions(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 row, got %d", len(history))
	}
	if history[0].AQI != 112.5 {
		t.Fatalf("unexpected aqi: %v", history[0].AQI)
	}
	if history[0].Observation.SensorCO != 1360 {
		t.Fatalf("unexpected observation: %+v", history[0].Observation)
	}
	if history[0].Observation.Hour != 18 {
		t.Fatalf("time features not rebuilt: %+v", history[0].Observation)
	}
}

func TestTrainingRuns(t *testing.T) {
	initTestDB(t)

	run := TrainingRun{
		ModelPath:  "models/aqi.model",
		Trees:      50,
		MaxDepth:   8,
		DataPoints: 9357,
		MAE:        4.2,
		RMSE:       6.1,
		TrainedAt:  time.Now().UTC(),
	}
	if err := SaveTrainingRun(run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := LoadTrainingRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Trees != 50 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}
