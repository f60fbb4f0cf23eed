package airdata

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = "Date;Time;AQI;PT08.S1(CO);PT08.S2(NMHC);PT08.S3(NOx);PT08.S4(NO2);PT08.S5(O3);T;RH;AH;;\n" +
	"10/03/2004;18.00.00;112,5;1360;1046;1056;1692;1268;13,6;48,9;0,7578;;\n" +
	"10/03/2004;19.00.00;95,0;1292;955;1174;1559;972;13,3;47,7;0,7255;;\n" +
	"10/03/2004;20.00.00;-200;-200;939;1140;1555;1074;11,9;54,0;0,7502;;\n" +
	";;;;;;;;;;;;\n"

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.AQI != 112.5 {
		t.Fatalf("decimal comma not parsed: %v", first.AQI)
	}
	if first.SensorCO != 1360 || first.Temperature != 13.6 {
		t.Fatalf("unexpected record: %+v", first)
	}
	if first.Timestamp.Hour() != 18 || first.Timestamp.Day() != 10 || first.Timestamp.Month() != 3 {
		t.Fatalf("timestamp not parsed day-first: %v", first.Timestamp)
	}
	if first.HasMissing() {
		t.Fatalf("record should be complete: %+v", first)
	}
	if !records[2].HasMissing() {
		t.Fatalf("sentinel not detected: %+v", records[2])
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	if err := os.WriteFile(path, []byte("Date;Time;AQI\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ReadCSV(path); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestObservationTimeFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obs := records[0].Observation()
	if obs.Year != 2004 || obs.Hour != 18 {
		t.Fatalf("time features not derived: %+v", obs)
	}
	// 2004-03-10 was a Wednesday.
	if obs.DayOfWeek != 2 {
		t.Fatalf("expected weekday 2, got %v", obs.DayOfWeek)
	}
}
