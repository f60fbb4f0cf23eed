package airdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// The source export is Latin-1 with ';' separators, decimal commas and
// DD/MM/YYYY dates, plus empty trailing columns on every row.

var columnAliases = map[string]string{
	"Date":            "date",
	"Time":            "time",
	"AQI":             "aqi",
	"PT08.S1(CO)":     "sensor_co",
	"PT08.S2(NMHC)":   "sensor_nmhc",
	"PT08.S3(NOx)":    "sensor_nox",
	"PT08.S4(NO2)":    "sensor_no2",
	"PT08.S5(O3)":     "sensor_o3",
	"T":               "temperature",
	"RH":              "relative_humidity",
	"AH":              "absolute_humidity",
}

var requiredColumns = []string{
	"date", "time", "aqi",
	"sensor_co", "sensor_nmhc", "sensor_nox", "sensor_no2", "sensor_o3",
	"temperature", "relative_humidity", "absolute_humidity",
}

// ReadCSV loads hourly records from a dataset export. Blank rows are
// skipped; missing readings keep the -200 sentinel for the cleaning
// stage to deal with.
func ReadCSV(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	return parseCSV(transform.NewReader(file, charmap.ISO8859_1.NewDecoder()))
}

func parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int)
	for i, name := range header {
		if key, ok := columnAliases[strings.TrimSpace(name)]; ok {
			columns[key] = i
		}
	}
	for _, key := range requiredColumns {
		if _, ok := columns[key]; !ok {
			return nil, fmt.Errorf("dataset missing column %q", key)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++

		if isBlankRow(row) {
			continue
		}

		record, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRow(row []string, columns map[string]int) (Record, error) {
	field := func(key string) (string, error) {
		idx := columns[key]
		if idx >= len(row) {
			return "", fmt.Errorf("missing field %q", key)
		}
		return strings.TrimSpace(row[idx]), nil
	}
	number := func(key string) (float64, error) {
		raw, err := field(key)
		if err != nil {
			return 0, err
		}
		if raw == "" {
			return Missing, nil
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return value, nil
	}

	dateRaw, err := field("date")
	if err != nil {
		return Record{}, err
	}
	timeRaw, err := field("time")
	if err != nil {
		return Record{}, err
	}
	timestamp, err := parseTimestamp(dateRaw, timeRaw)
	if err != nil {
		return Record{}, err
	}

	record := Record{Timestamp: timestamp}
	targets := map[string]*float64{
		"aqi":               &record.AQI,
		"sensor_co":         &record.SensorCO,
		"sensor_nmhc":       &record.SensorNMHC,
		"sensor_nox":        &record.SensorNOx,
		"sensor_no2":        &record.SensorNO2,
		"sensor_o3":         &record.SensorO3,
		"temperature":       &record.Temperature,
		"relative_humidity": &record.RelativeHumidity,
		"absolute_humidity": &record.AbsoluteHumidity,
	}
	for key, target := range targets {
		value, err := number(key)
		if err != nil {
			return Record{}, err
		}
		*target = value
	}
	return record, nil
}

func parseTimestamp(dateRaw, timeRaw string) (time.Time, error) {
	// "10/03/2004" + "18.00.00"
	t, err := time.Parse("02/01/2006 15.04.05", dateRaw+" "+timeRaw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q %q: %w", dateRaw, timeRaw, err)
	}
	return t, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
