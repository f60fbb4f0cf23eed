package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"aqicast/airdata"
	"aqicast/db"
	"aqicast/ml"
	"aqicast/pipeline"
)

func main() {
	csvPath := flag.String("csv", "", "training data CSV path")
	modelPath := flag.String("model_path", "./models/aqi.model", "model output path")
	trees := flag.Int("trees", 50, "number of trees")
	maxDepth := flag.Int("max_depth", 8, "max tree depth")
	minLeaf := flag.Int("min_leaf", 2, "min samples per leaf")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	seed := flag.Int64("seed", 1, "random seed")
	dbPath := flag.String("db", "", "optional SQLite path to record the run")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("csv is required")
	}

	features, labels, err := buildTrainingData(*csvPath)
	if err != nil {
		log.Fatalf("failed to build training data: %v", err)
	}
	log.Printf("training samples: %d", len(features))

	trainX, trainY, testX, testY := splitDataset(features, labels, *testRatio, *seed)

	forest, err := ml.TrainForest(trainX, trainY, ml.FeatureNames(), ml.TrainConfig{
		Trees:    *trees,
		MaxDepth: *maxDepth,
		MinLeaf:  *minLeaf,
		Seed:     *seed,
	})
	if err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	mae, rmse := evaluateModel(forest, testX, testY)
	log.Printf("mae=%.2f rmse=%.2f", mae, rmse)

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := forest.Save(*modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	if *dbPath != "" {
		if err := recordRun(*dbPath, *modelPath, forest, *maxDepth, len(features), mae, rmse); err != nil {
			log.Printf("failed to record training run: %v", err)
		}
	}

	fmt.Printf("model saved to %s\n", *modelPath)
}

func buildTrainingData(csvPath string) ([][]float64, []float64, error) {
	records, err := airdata.ReadCSV(csvPath)
	if err != nil {
		return nil, nil, err
	}

	cleaner := pipeline.NewDataCleaner()
	records = cleaner.FillMissing(records)
	cleaned, issues := cleaner.Clean(records)
	if len(issues) > 0 {
		log.Printf("rejected %d records during cleaning", cleaner.GetStats().Rejected)
	}
	if len(cleaned) == 0 {
		return nil, nil, fmt.Errorf("no usable records in %s", csvPath)
	}

	features := make([][]float64, 0, len(cleaned))
	labels := make([]float64, 0, len(cleaned))
	for _, record := range cleaned {
		features = append(features, ml.FeatureVector(record.Observation()))
		labels = append(labels, record.AQI)
	}
	return features, labels, nil
}

func splitDataset(features [][]float64, labels []float64, testRatio float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}

func evaluateModel(forest *ml.Forest, testX [][]float64, testY []float64) (mae, rmse float64) {
	if len(testX) == 0 {
		return 0, 0
	}

	var absSum, sqSum float64
	count := 0
	for i, features := range testX {
		value, err := forest.Predict(features)
		if err != nil {
			continue
		}
		diff := value - testY[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		count++
	}
	if count == 0 {
		return 0, 0
	}
	mae = absSum / float64(count)
	rmse = math.Sqrt(sqSum / float64(count))
	return mae, rmse
}

func recordRun(dbPath, modelPath string, forest *ml.Forest, maxDepth, samples int, mae, rmse float64) error {
	if err := db.InitDB(dbPath); err != nil {
		return err
	}
	defer db.Close()

	return db.SaveTrainingRun(db.TrainingRun{
		ModelPath:  modelPath,
		Trees:      forest.TreeCount(),
		MaxDepth:   maxDepth,
		DataPoints: samples,
		MAE:        mae,
		RMSE:       rmse,
		TrainedAt:  forest.TrainedAt(),
	})
}
