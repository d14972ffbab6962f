package firestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Credentials is a service account key and the project it belongs to.
type Credentials struct {
	JSON      []byte
	ProjectID string
	Source    string // "env" or "file"
}

// LoadCredentials reads the service account JSON from the environment
// variable named envVar, falling back to file. projectID overrides the
// project_id recorded in the key.
func LoadCredentials(envVar, file, projectID string) (*Credentials, error) {
	var (
		raw    []byte
		source string
	)
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			raw, source = []byte(v), "env"
		}
	}
	if raw == nil {
		if file == "" {
			return nil, errors.New("no firestore credentials: set the credentials env var or credentials_file")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		raw, source = data, "file"
	}

	var key struct {
		Type      string `json:"type"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("failed to parse credentials from %s: %w", source, err)
	}
	if projectID == "" {
		projectID = key.ProjectID
	}
	if projectID == "" {
		return nil, fmt.Errorf("credentials from %s carry no project_id and none is configured", source)
	}

	slog.Info("[Firestore] Loaded credentials", "source", source, "project_id", projectID, "type", key.Type)
	return &Credentials{JSON: raw, ProjectID: projectID, Source: source}, nil
}
