package airdata

import (
	"time"

	"aqicast/ml"
)

// Missing is the sentinel the source dataset uses for absent readings.
const Missing = -200.0

// Record is one hourly sample from the air quality dataset.
type Record struct {
	Timestamp time.Time `json:"timestamp"`

	AQI float64 `json:"aqi"`

	SensorCO   float64 `json:"sensor_co"`
	SensorNMHC float64 `json:"sensor_nmhc"`
	SensorNOx  float64 `json:"sensor_nox"`
	SensorNO2  float64 `json:"sensor_no2"`
	SensorO3   float64 `json:"sensor_o3"`

	Temperature      float64 `json:"temperature"`
	RelativeHumidity float64 `json:"relative_humidity"`
	AbsoluteHumidity float64 `json:"absolute_humidity"`
}

// HasMissing reports whether any reading carries the sentinel.
func (r Record) HasMissing() bool {
	for _, v := range r.values() {
		if v == Missing {
			return true
		}
	}
	return r.AQI == Missing
}

func (r Record) values() []float64 {
	return []float64{
		r.SensorCO, r.SensorNMHC, r.SensorNOx, r.SensorNO2, r.SensorO3,
		r.Temperature, r.RelativeHumidity, r.AbsoluteHumidity,
	}
}

// Observation converts the record into model input, deriving the six
// time features from the timestamp.
func (r Record) Observation() ml.Observation {
	obs := ml.Observation{
		SensorCO:         r.SensorCO,
		SensorNMHC:       r.SensorNMHC,
		SensorNOx:        r.SensorNOx,
		SensorNO2:        r.SensorNO2,
		SensorO3:         r.SensorO3,
		Temperature:      r.Temperature,
		RelativeHumidity: r.RelativeHumidity,
		AbsoluteHumidity: r.AbsoluteHumidity,
	}
	obs.ApplyTime(r.Timestamp)
	return obs
}
