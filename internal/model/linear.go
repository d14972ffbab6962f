package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
	"gopkg.in/yaml.v3"
)

// LinearSpec is the on-disk form of a fitted multi-output linear regressor,
// e.g. coef_ and intercept_ exported from the training pipeline.
//
//	columns: [sensor_N, sensor_P, sensor_K, sensor_PH, sensor_EC]
//	coefficients:
//	  - [1.05, 0, 0, 0, 0]
//	  ...
//	intercept: [0.7, 0.4, 0.1, -0.2, 10.5]
type LinearSpec struct {
	Columns      []string    `yaml:"columns"`
	Coefficients [][]float64 `yaml:"coefficients"`
	Intercept    []float64   `yaml:"intercept"`
}

// Linear computes y = W·x + b with W one row per output channel.
type Linear struct {
	weights   [][]float64
	intercept []float64
}

// LoadLinear reads and validates a LinearSpec YAML file.
func LoadLinear(path string) (*Linear, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var spec LinearSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	m, err := NewLinear(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}

	slog.Info("[Model] Loaded linear calibration model", "path", path)
	return m, nil
}

// NewLinear validates spec and builds the model.
func NewLinear(spec LinearSpec) (*Linear, error) {
	if len(spec.Columns) > 0 {
		if err := checkWidth("columns", len(spec.Columns)); err != nil {
			return nil, err
		}
		for i, c := range spec.Columns {
			if c != v1.FeatureColumns[i] {
				return nil, fmt.Errorf("column %d is %q, want %q", i, c, v1.FeatureColumns[i])
			}
		}
	}
	if err := checkWidth("coefficients", len(spec.Coefficients)); err != nil {
		return nil, err
	}
	for i, row := range spec.Coefficients {
		if err := checkWidth(fmt.Sprintf("coefficients[%d]", i), len(row)); err != nil {
			return nil, err
		}
	}
	if err := checkWidth("intercept", len(spec.Intercept)); err != nil {
		return nil, err
	}

	return &Linear{weights: spec.Coefficients, intercept: spec.Intercept}, nil
}

func (m *Linear) Predict(ctx context.Context, features []float64) ([]float64, error) {
	if err := checkWidth("feature row", len(features)); err != nil {
		return nil, err
	}

	out := make([]float64, len(m.weights))
	for i, row := range m.weights {
		sum := m.intercept[i]
		for j, w := range row {
			sum += w * features[j]
		}
		out[i] = sum
	}
	return out, nil
}
