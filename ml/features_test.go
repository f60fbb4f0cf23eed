package ml

import (
	"testing"
	"time"
)

func TestFeatureVectorOrder(t *testing.T) {
	obs := Observation{
		SensorCO:         1,
		SensorNMHC:       2,
		SensorNOx:        3,
		SensorNO2:        4,
		SensorO3:         5,
		Temperature:      6,
		RelativeHumidity: 7,
		AbsoluteHumidity: 8,
		Year:             9,
		Month:            10,
		Day:              11,
		Hour:             12,
		DayOfWeek:        13,
		WeekOfYear:       14,
	}

	vector := FeatureVector(obs)
	if len(vector) != FeatureCount {
		t.Fatalf("expected %d features, got %d", FeatureCount, len(vector))
	}
	for i, v := range vector {
		if v != float64(i+1) {
			t.Fatalf("feature %d out of order: got %v", i, v)
		}
	}
	if len(FeatureNames()) != FeatureCount {
		t.Fatalf("feature names length mismatch")
	}
}

func TestApplyTime(t *testing.T) {
	obs := Observation{}
	// 2004-03-10 was a Wednesday in ISO week 11.
	obs.ApplyTime(time.Date(2004, 3, 10, 18, 0, 0, 0, time.UTC))

	if obs.Year != 2004 || obs.Month != 3 || obs.Day != 10 || obs.Hour != 18 {
		t.Fatalf("unexpected date fields: %+v", obs)
	}
	if obs.DayOfWeek != 2 {
		t.Fatalf("expected Monday=0 weekday 2, got %v", obs.DayOfWeek)
	}
	if obs.WeekOfYear != 11 {
		t.Fatalf("expected ISO week 11, got %v", obs.WeekOfYear)
	}
}
