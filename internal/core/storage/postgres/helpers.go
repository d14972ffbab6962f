package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
)

// marshalDocument splits doc into its JSON body and the keys whose value is
// storage.ServerTimestamp; the database fills those in with now().
func marshalDocument(doc storage.Document) (dataJSON []byte, stampKeys []string, err error) {
	body := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if storage.IsServerTimestamp(v) {
			stampKeys = append(stampKeys, k)
			continue
		}
		body[k] = v
	}
	sort.Strings(stampKeys)

	dataJSON, err = json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return dataJSON, stampKeys, nil
}

// unmarshalDocument decodes a jsonb column. Numbers stay json.Number so
// integer fields survive a read-modify-write cycle unchanged.
func unmarshalDocument(dataJSON []byte) (storage.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(dataJSON))
	dec.UseNumber()

	var doc storage.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if doc == nil {
		doc = storage.Document{}
	}
	return doc, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot scans an (id, data) row.
func scanSnapshot(row scanner) (*storage.Snapshot, error) {
	var (
		id       string
		dataJSON []byte
	)
	if err := row.Scan(&id, &dataJSON); err != nil {
		return nil, err
	}
	doc, err := unmarshalDocument(dataJSON)
	if err != nil {
		return nil, err
	}
	return &storage.Snapshot{ID: id, Data: doc}, nil
}
