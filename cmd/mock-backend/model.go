package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/rhuss/modelserve/pkg/api"
)

// centroidModel is a nearest-centroid classifier over numeric features.
type centroidModel struct {
	classes   []string
	centroids map[string][]float64
	width     int
}

// irisModel holds the per-class means of the iris data set: sepal length,
// sepal width, petal length, petal width.
func irisModel() *centroidModel {
	return newCentroidModel(map[string][]float64{
		"setosa":     {5.006, 3.428, 1.462, 0.246},
		"versicolor": {5.936, 2.770, 4.260, 1.326},
		"virginica":  {6.588, 2.974, 5.552, 2.026},
	})
}

func newCentroidModel(centroids map[string][]float64) *centroidModel {
	m := &centroidModel{centroids: centroids}
	for class, c := range centroids {
		m.classes = append(m.classes, class)
		m.width = len(c)
	}
	sort.Strings(m.classes)
	return m
}

func (m *centroidModel) features(sample api.Sample) ([]float64, error) {
	if len(sample) != m.width {
		return nil, fmt.Errorf("expected %d features, got %d", m.width, len(sample))
	}
	out := make([]float64, len(sample))
	for i, v := range sample {
		f, ok := v.AsFloat()
		if !ok {
			return nil, fmt.Errorf("feature %d must be numeric, got %s", i, v.Type())
		}
		out[i] = f
	}
	return out, nil
}

// distances returns the euclidean distance from x to every centroid, in
// class order.
func (m *centroidModel) distances(x []float64) []float64 {
	out := make([]float64, len(m.classes))
	for i, class := range m.classes {
		var sum float64
		for j, c := range m.centroids[class] {
			d := x[j] - c
			sum += d * d
		}
		out[i] = math.Sqrt(sum)
	}
	return out
}

func (m *centroidModel) predict(sample api.Sample) (api.Value, error) {
	x, err := m.features(sample)
	if err != nil {
		return api.Value{}, err
	}
	best := 0
	dist := m.distances(x)
	for i, d := range dist {
		if d < dist[best] {
			best = i
		}
	}
	return api.String(m.classes[best]), nil
}

// proba is a softmax over negative distances.
func (m *centroidModel) proba(sample api.Sample) (map[string]float64, error) {
	x, err := m.features(sample)
	if err != nil {
		return nil, err
	}
	dist := m.distances(x)
	minDist := dist[0]
	for _, d := range dist {
		minDist = math.Min(minDist, d)
	}
	var total float64
	weights := make([]float64, len(dist))
	for i, d := range dist {
		weights[i] = math.Exp(minDist - d)
		total += weights[i]
	}
	out := make(map[string]float64, len(m.classes))
	for i, class := range m.classes {
		out[class] = weights[i] / total
	}
	return out, nil
}

// score is the negated distance to the closest centroid: samples near a
// known class rank higher.
func (m *centroidModel) score(sample api.Sample) (float64, error) {
	x, err := m.features(sample)
	if err != nil {
		return 0, err
	}
	dist := m.distances(x)
	minDist := dist[0]
	for _, d := range dist {
		minDist = math.Min(minDist, d)
	}
	return -minDist, nil
}
