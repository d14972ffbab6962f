package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
)

const (
	defaultRemoteTimeout = 5 * time.Second
	maxResponseBytes     = 1 << 20
)

type predictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// Remote calls a model server that hosts the fitted estimator.
// POST {url} with {"columns": [...], "rows": [[...]]}, expects {"predictions": [[...]]}.
type Remote struct {
	url    string
	client *http.Client
}

func NewRemote(url string, timeout time.Duration) (*Remote, error) {
	if url == "" {
		return nil, fmt.Errorf("remote model url is required")
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &Remote{url: url, client: &http.Client{Timeout: timeout}}, nil
}

func (r *Remote) Predict(ctx context.Context, features []float64) ([]float64, error) {
	if err := checkWidth("feature row", len(features)); err != nil {
		return nil, err
	}

	body, err := json.Marshal(predictRequest{Columns: v1.FeatureColumns, Rows: [][]float64{features}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read predict response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var out predictResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to decode predict response: %w", err)
	}
	if len(out.Predictions) != 1 {
		return nil, fmt.Errorf("model server returned %d rows, want 1", len(out.Predictions))
	}
	if err := checkWidth("prediction", len(out.Predictions[0])); err != nil {
		return nil, err
	}
	return out.Predictions[0], nil
}
