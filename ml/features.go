package ml

import "time"

// FeatureCount is the number of inputs the model was trained on.
const FeatureCount = 14

// Observation holds one prediction input. Field order mirrors the
// training data: five metal-oxide sensor channels, three environmental
// factors, six date/time derived values.
type Observation struct {
	SensorCO   float64 // PT08.S1 tin oxide, targeted to CO
	SensorNMHC float64 // PT08.S2 titania, targeted to NMHC
	SensorNOx  float64 // PT08.S3 tungsten oxide, targeted to NOx
	SensorNO2  float64 // PT08.S4 tungsten oxide, targeted to NO2
	SensorO3   float64 // PT08.S5 indium oxide, targeted to O3

	Temperature      float64
	RelativeHumidity float64
	AbsoluteHumidity float64

	Year       float64
	Month      float64
	Day        float64
	Hour       float64
	DayOfWeek  float64 // Monday=0
	WeekOfYear float64 // ISO week
}

// ApplyTime fills the six date/time derived fields from t.
func (o *Observation) ApplyTime(t time.Time) {
	o.Year = float64(t.Year())
	o.Month = float64(int(t.Month()))
	o.Day = float64(t.Day())
	o.Hour = float64(t.Hour())
	o.DayOfWeek = float64((int(t.Weekday()) + 6) % 7)
	_, week := t.ISOWeek()
	o.WeekOfYear = float64(week)
}

// FeatureVector flattens an observation in training order. The order
// must never change without retraining the model.
func FeatureVector(o Observation) []float64 {
	return []float64{
		o.SensorCO,
		o.SensorNMHC,
		o.SensorNOx,
		o.SensorNO2,
		o.SensorO3,
		o.Temperature,
		o.RelativeHumidity,
		o.AbsoluteHumidity,
		o.Year,
		o.Month,
		o.Day,
		o.Hour,
		o.DayOfWeek,
		o.WeekOfYear,
	}
}

func FeatureNames() []string {
	return []string{
		"Tin oxide sensor (PT08.S1)",
		"Titania sensor (PT08.S2)",
		"Tungsten oxide sensor (PT08.S3)",
		"Tungsten oxide sensor (PT08.S4)",
		"Indium oxide sensor (PT08.S5)",
		"Temperature (°C)",
		"Relative Humidity (%)",
		"Absolute Humidity",
		"Year",
		"Month",
		"Day",
		"Hour",
		"Day of Week",
		"Week of Year",
	}
}
