// Package model provides the calibration model collaborator: a black-box
// mapping from one row of five sensor features to five calibrated outputs.
package model

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
)

const (
	TypeLinear = "linear"
	TypeRemote = "remote"
)

// Predictor runs the calibration model on a single feature row. Input and
// output are ordered N, P, K, pH, Conductivity (see v1.Channels).
type Predictor interface {
	Predict(ctx context.Context, features []float64) ([]float64, error)
}

// Options selects and configures a Predictor implementation.
type Options struct {
	Type    string
	Path    string
	URL     string
	Timeout time.Duration
}

// New builds the Predictor described by opts.
func New(opts Options) (Predictor, error) {
	switch opts.Type {
	case TypeLinear, "":
		return LoadLinear(opts.Path)
	case TypeRemote:
		return NewRemote(opts.URL, opts.Timeout)
	default:
		return nil, fmt.Errorf("unsupported model type %q", opts.Type)
	}
}

func checkWidth(what string, got int) error {
	if got != len(v1.Channels) {
		return fmt.Errorf("%s has %d values, want %d", what, got, len(v1.Channels))
	}
	return nil
}
