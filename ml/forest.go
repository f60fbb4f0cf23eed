package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"
)

// ArtifactFormat is bumped whenever the serialized layout changes in an
// incompatible way.
const ArtifactFormat = 1

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// Forest is a random forest of regression trees. It is immutable after
// training or loading and safe for concurrent use.
type Forest struct {
	trees        [][]TreeNode
	featureNames []string
	importances  []float64
	trainedAt    time.Time
	samples      int
}

type forestArtifact struct {
	Format       int          `json:"format"`
	FeatureNames []string     `json:"feature_names"`
	Trees        [][]TreeNode `json:"trees"`
	Importances  []float64    `json:"importances"`
	TrainedAt    time.Time    `json:"trained_at"`
	Samples      int          `json:"samples"`
}

type TrainConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// TrainForest fits a forest on the given samples. Each tree is grown on
// a bootstrap resample; splits minimize weighted variance.
func TrainForest(features [][]float64, labels []float64, names []string, config TrainConfig) (*Forest, error) {
	if len(features) == 0 || len(labels) == 0 {
		return nil, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return nil, errors.New("features and labels size mismatch")
	}
	if len(names) == 0 {
		return nil, errors.New("feature names required")
	}
	for i, row := range features {
		if len(row) != len(names) {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), len(names))
		}
	}
	if config.Trees <= 0 {
		config.Trees = 50
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = 8
	}
	if config.MinLeaf <= 0 {
		config.MinLeaf = 2
	}

	rnd := rand.New(rand.NewSource(config.Seed))
	importances := make([]float64, len(names))
	trees := make([][]TreeNode, 0, config.Trees)

	for t := 0; t < config.Trees; t++ {
		sampleX := make([][]float64, len(features))
		sampleY := make([]float64, len(labels))
		for i := range sampleX {
			j := rnd.Intn(len(features))
			sampleX[i] = features[j]
			sampleY[i] = labels[j]
		}
		nodes := buildRegressionNode(sampleX, sampleY, 0, config, importances)
		trees = append(trees, nodes)
	}

	normalize(importances)

	return &Forest{
		trees:        trees,
		featureNames: append([]string(nil), names...),
		importances:  importances,
		trainedAt:    time.Now().UTC(),
		samples:      len(features),
	}, nil
}

// Predict walks every tree and averages the leaf values.
func (f *Forest) Predict(features []float64) (float64, error) {
	if len(f.trees) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(f.featureNames) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrInvalidInput, len(features), len(f.featureNames))
	}

	sum := 0.0
	for _, nodes := range f.trees {
		value, err := walkTree(nodes, features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(f.trees)), nil
}

func walkTree(nodes []TreeNode, features []float64) (float64, error) {
	idx := 0
	for {
		node := nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (f *Forest) FeatureCount() int { return len(f.featureNames) }

func (f *Forest) FeatureNames() []string {
	return append([]string(nil), f.featureNames...)
}

// Importances returns the normalized impurity-decrease scores, one per
// feature, in feature order.
func (f *Forest) Importances() []float64 {
	return append([]float64(nil), f.importances...)
}

func (f *Forest) TreeCount() int { return len(f.trees) }

func (f *Forest) Samples() int { return f.samples }

func (f *Forest) TrainedAt() time.Time { return f.trainedAt }

// Save writes the artifact as JSON.
func (f *Forest) Save(path string) error {
	if len(f.trees) == 0 {
		return errors.New("model not trained")
	}
	artifact := forestArtifact{
		Format:       ArtifactFormat,
		FeatureNames: f.featureNames,
		Trees:        f.trees,
		Importances:  f.importances,
		TrainedAt:    f.trainedAt,
		Samples:      f.samples,
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadForest deserializes an artifact. A missing or unreadable path
// reports ErrModelNotFound; anything that parses wrong reports
// ErrModelCorrupt.
func LoadForest(path string) (*Forest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, path, err)
	}

	var artifact forestArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}
	if artifact.Format != ArtifactFormat {
		return nil, fmt.Errorf("%w: unknown format %d", ErrModelCorrupt, artifact.Format)
	}
	if len(artifact.Trees) == 0 || len(artifact.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: empty forest", ErrModelCorrupt)
	}
	if len(artifact.Importances) != 0 && len(artifact.Importances) != len(artifact.FeatureNames) {
		return nil, fmt.Errorf("%w: %d importances for %d features", ErrModelCorrupt, len(artifact.Importances), len(artifact.FeatureNames))
	}

	return &Forest{
		trees:        artifact.Trees,
		featureNames: artifact.FeatureNames,
		importances:  artifact.Importances,
		trainedAt:    artifact.TrainedAt,
		samples:      artifact.Samples,
	}, nil
}

func buildRegressionNode(features [][]float64, labels []float64, depth int, config TrainConfig, importances []float64) []TreeNode {
	leaf := func() []TreeNode {
		return []TreeNode{{
			FeatureIdx: -1,
			LeftChild:  -1,
			RightChild: -1,
			Value:      mean(labels),
			IsLeaf:     true,
		}}
	}

	if depth >= config.MaxDepth || len(labels) < 2*config.MinLeaf {
		return leaf()
	}

	bestFeature, threshold, gain, ok := findBestSplit(features, labels, config.MinLeaf)
	if !ok {
		return leaf()
	}

	leftX, leftY, rightX, rightY := splitData(features, labels, bestFeature, threshold)
	if len(leftY) == 0 || len(rightY) == 0 {
		return leaf()
	}

	importances[bestFeature] += gain * float64(len(labels))

	leftNodes := buildRegressionNode(leftX, leftY, depth+1, config, importances)
	rightNodes := buildRegressionNode(rightX, rightY, depth+1, config, importances)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      mean(labels),
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func findBestSplit(features [][]float64, labels []float64, minLeaf int) (int, float64, float64, bool) {
	featureCount := len(features[0])
	parentVar := variance(labels)
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftY, rightY := splitLabels(features, labels, featureIdx, threshold)
		if len(leftY) < minLeaf || len(rightY) < minLeaf {
			continue
		}
		gain := parentVar - weightedVariance(leftY, rightY)
		if gain > bestGain {
			bestGain = gain
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}

func splitData(features [][]float64, labels []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	leftX := make([][]float64, 0)
	leftY := make([]float64, 0)
	rightX := make([][]float64, 0)
	rightY := make([]float64, 0)
	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, labels[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, labels[i])
		}
	}
	return leftX, leftY, rightX, rightY
}

func splitLabels(features [][]float64, labels []float64, featureIdx int, threshold float64) ([]float64, []float64) {
	leftY := make([]float64, 0)
	rightY := make([]float64, 0)
	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftY = append(leftY, labels[i])
		} else {
			rightY = append(rightY, labels[i])
		}
	}
	return leftY, rightY
}

func weightedVariance(leftY, rightY []float64) float64 {
	leftWeight := float64(len(leftY))
	rightWeight := float64(len(rightY))
	total := leftWeight + rightWeight
	return (leftWeight/total)*variance(leftY) + (rightWeight/total)*variance(rightY)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		diff := v - m
		sum += diff * diff
	}
	return sum / float64(len(values))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sortFloats(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sortFloats(values []float64) {
	for i := 1; i < len(values); i++ {
		j := i
		for j > 0 && values[j-1] > values[j] {
			values[j-1], values[j] = values[j], values[j-1]
			j--
		}
	}
}

func normalize(values []float64) {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total == 0 || math.IsNaN(total) {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
