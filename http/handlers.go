package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"aqicast/db"
	"aqicast/ml"
	"aqicast/monitoring"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	predictor  *ml.Predictor
	modelStore *ml.Store
	hub        *monitoring.Hub
	metrics    *monitoring.Collector
	cache      *lru.Cache[string, float64]

	// Swappable for handler tests.
	savePrediction   = db.SavePrediction
	queryPredictions = db.QueryPredictions
)

func SetPredictor(p *ml.Predictor) { predictor = p }

func SetModelStore(s *ml.Store) { modelStore = s }

func SetHub(h *monitoring.Hub) { hub = h }

func SetMetrics(c *monitoring.Collector) { metrics = c }

// SetCacheSize enables the prediction response cache. The model is
// deterministic, so identical inputs can be served from memory.
func SetCacheSize(size int) error {
	if size <= 0 {
		cache = nil
		return nil
	}
	c, err := lru.New[string, float64](size)
	if err != nil {
		return err
	}
	cache = c
	return nil
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("GET /api/importances", handleImportances)
	mux.HandleFunc("GET /api/model", handleModelInfo)
	mux.HandleFunc("GET /api/predictions", handleHistory)
	mux.HandleFunc("GET /api/metrics", handleMetrics)
	mux.HandleFunc("GET /api/ws/live", handleLiveWS)
}

type predictRequest struct {
	SensorCO   *float64 `json:"sensor_co"`
	SensorNMHC *float64 `json:"sensor_nmhc"`
	SensorNOx  *float64 `json:"sensor_nox"`
	SensorNO2  *float64 `json:"sensor_no2"`
	SensorO3   *float64 `json:"sensor_o3"`

	Temperature      *float64 `json:"temperature"`
	RelativeHumidity *float64 `json:"relative_humidity"`
	AbsoluteHumidity *float64 `json:"absolute_humidity"`

	// RFC3339; defaults to the current time when omitted.
	Timestamp string `json:"timestamp"`
}

type predictResponse struct {
	AQI        float64   `json:"aqi"`
	Cached     bool      `json:"cached"`
	ObservedAt time.Time `json:"observed_at"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	if predictor == nil {
		writeError(w, errors.New("predictor not configured"))
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", ml.ErrInvalidInput, err))
		return
	}

	obs, observedAt, err := req.observation()
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	vector := ml.FeatureVector(obs)
	key := cacheKey(vector)

	value, cached := float64(0), false
	if cache != nil {
		value, cached = cache.Get(key)
	}
	if !cached {
		value, err = predictor.PredictVector(vector)
		if err != nil {
			countMetric("prediction_errors")
			writeError(w, err)
			return
		}
		if cache != nil {
			cache.Add(key, value)
		}
	} else {
		countMetric("cache_hits")
	}

	countMetric("predictions_total")
	if metrics != nil {
		metrics.ObserveLatency(time.Since(start))
	}

	row := db.PredictionRow{Observation: obs, ObservedAt: observedAt, AQI: value, Cached: cached}
	if err := savePrediction(row); err != nil {
		zap.S().Warnf("failed to record prediction: %v", err)
	}
	if hub != nil {
		hub.Broadcast(monitoring.PredictionEvent, row)
	}

	respondJSON(w, predictResponse{AQI: value, Cached: cached, ObservedAt: observedAt})
}

func handleImportances(w http.ResponseWriter, r *http.Request) {
	if predictor == nil {
		writeError(w, errors.New("predictor not configured"))
		return
	}
	ranked, err := predictor.FeatureImportances()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{"importances": ranked})
}

func handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if modelStore == nil {
		writeError(w, errors.New("model store not configured"))
		return
	}
	forest, err := modelStore.Forest()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"path":       modelStore.Path(),
		"trees":      forest.TreeCount(),
		"samples":    forest.Samples(),
		"trained_at": forest.TrainedAt(),
		"features":   forest.FeatureNames(),
	})
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := queryPredictions(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{"predictions": history})
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if metrics == nil {
		respondJSON(w, map[string]interface{}{})
		return
	}
	snapshot := metrics.Snapshot()
	if hub != nil {
		snapshot["ws_clients"] = hub.ClientCount()
	}
	respondJSON(w, snapshot)
}

func handleLiveWS(w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		http.Error(w, `{"error":"live stream not configured"}`, http.StatusServiceUnavailable)
		return
	}
	hub.HandleWS(w, r)
}

// observation validates the request and assembles the model input. All
// eight readings are required; the six time features derive from the
// timestamp.
func (req *predictRequest) observation() (ml.Observation, time.Time, error) {
	fields := map[string]*float64{
		"sensor_co":         req.SensorCO,
		"sensor_nmhc":       req.SensorNMHC,
		"sensor_nox":        req.SensorNOx,
		"sensor_no2":        req.SensorNO2,
		"sensor_o3":         req.SensorO3,
		"temperature":       req.Temperature,
		"relative_humidity": req.RelativeHumidity,
		"absolute_humidity": req.AbsoluteHumidity,
	}
	for name, value := range fields {
		if value == nil {
			return ml.Observation{}, time.Time{}, fmt.Errorf("%w: field %q is required", ml.ErrInvalidInput, name)
		}
	}

	observedAt := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return ml.Observation{}, time.Time{}, fmt.Errorf("%w: timestamp: %v", ml.ErrInvalidInput, err)
		}
		observedAt = parsed
	}

	obs := ml.Observation{
		SensorCO:         *req.SensorCO,
		SensorNMHC:       *req.SensorNMHC,
		SensorNOx:        *req.SensorNOx,
		SensorNO2:        *req.SensorNO2,
		SensorO3:         *req.SensorO3,
		Temperature:      *req.Temperature,
		RelativeHumidity: *req.RelativeHumidity,
		AbsoluteHumidity: *req.AbsoluteHumidity,
	}
	obs.ApplyTime(observedAt)
	return obs, observedAt, nil
}

func cacheKey(vector []float64) string {
	key := make([]byte, 0, len(vector)*12)
	for _, v := range vector {
		key = strconv.AppendFloat(key, v, 'g', -1, 64)
		key = append(key, '|')
	}
	return string(key)
}

func countMetric(name string) {
	if metrics != nil {
		metrics.Inc(name)
	}
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto status codes and reports the
// precise kind to the caller.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ml.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ml.ErrNoImportances):
		status = http.StatusNotImplemented
	case errors.Is(err, ml.ErrModelUnavailable),
		errors.Is(err, ml.ErrModelNotFound),
		errors.Is(err, ml.ErrModelCorrupt):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
