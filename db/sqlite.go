package db

import (
	"database/sql"
	"errors"
	"time"

	"aqicast/ml"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sensor_co REAL,
        sensor_nmhc REAL,
        sensor_nox REAL,
        sensor_no2 REAL,
        sensor_o3 REAL,
        temperature REAL,
        relative_humidity REAL,
        absolute_humidity REAL,
        observed_at DATETIME,
        aqi REAL,
        cached INTEGER DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_path TEXT,
        trees INTEGER,
        max_depth INTEGER,
        data_points INTEGER,
        mae REAL,
        rmse REAL,
        trained_at DATETIME
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionRow is one served prediction, kept as an audit log. The
// predictor never reads it back.
type PredictionRow struct {
	Observation ml.Observation `json:"observation"`
	ObservedAt  time.Time      `json:"observed_at"`
	AQI         float64        `json:"aqi"`
	Cached      bool           `json:"cached"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SavePrediction appends one prediction to the history.
func SavePrediction(row PredictionRow) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO predictions (
            sensor_co, sensor_nmhc, sensor_nox, sensor_no2, sensor_o3,
            temperature, relative_humidity, absolute_humidity,
            observed_at, aqi, cached
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Observation.SensorCO,
		row.Observation.SensorNMHC,
		row.Observation.SensorNOx,
		row.Observation.SensorNO2,
		row.Observation.SensorO3,
		row.Observation.Temperature,
		row.Observation.RelativeHumidity,
		row.Observation.AbsoluteHumidity,
		row.ObservedAt,
		row.AQI,
		row.Cached,
	)
	return err
}

// QueryPredictions returns the most recent predictions, newest first.
func QueryPredictions(limit int) ([]PredictionRow, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT sensor_co, sensor_nmhc, sensor_nox, sensor_no2, sensor_o3,
               temperature, relative_humidity, absolute_humidity,
               observed_at, aqi, cached, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]PredictionRow, 0)
	for rows.Next() {
		var row PredictionRow
		err := rows.Scan(
			&row.Observation.SensorCO,
			&row.Observation.SensorNMHC,
			&row.Observation.SensorNOx,
			&row.Observation.SensorNO2,
			&row.Observation.SensorO3,
			&row.Observation.Temperature,
			&row.Observation.RelativeHumidity,
			&row.Observation.AbsoluteHumidity,
			&row.ObservedAt,
			&row.AQI,
			&row.Cached,
			&row.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		row.Observation.ApplyTime(row.ObservedAt)
		history = append(history, row)
	}
	return history, rows.Err()
}

type TrainingRun struct {
	ModelPath  string    `json:"model_path"`
	Trees      int       `json:"trees"`
	MaxDepth   int       `json:"max_depth"`
	DataPoints int       `json:"data_points"`
	MAE        float64   `json:"mae"`
	RMSE       float64   `json:"rmse"`
	TrainedAt  time.Time `json:"trained_at"`
}

func SaveTrainingRun(run TrainingRun) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_runs (
            model_path, trees, max_depth, data_points, mae, rmse, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ModelPath, run.Trees, run.MaxDepth, run.DataPoints, run.MAE, run.RMSE, run.TrainedAt,
	)
	return err
}

func LoadTrainingRuns() ([]TrainingRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT model_path, trees, max_depth, data_points, mae, rmse, trained_at
        FROM training_runs
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ModelPath, &run.Trees, &run.MaxDepth, &run.DataPoints, &run.MAE, &run.RMSE, &run.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
