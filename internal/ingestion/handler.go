package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	v1 "github.com/agrisense-lab/npkcal/internal/api/v1"
	"github.com/agrisense-lab/npkcal/internal/calibration"
	httperr "github.com/agrisense-lab/npkcal/internal/core/errors"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	fieldID = "id"

	msgReadBodyFailed   = "Failed to read request body"
	msgInvalidJSON      = "Invalid JSON body"
	msgPersistFailed    = "Failed to persist reading"
	msgDuplicateReading = "Reading already exists"
	msgLookupFailed     = "Failed to read document"
)

// Document IDs must be valid in every backend: no path separators for
// Firestore, and only KV-safe characters for NATS.
var validID = regexp.MustCompile(`^[A-Za-z0-9_=\-]{1,256}$`)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler accepts one raw reading and stores it in the raw collection,
// where the worker picks it up like any other new document.
func (s *Service) IngestHandler(c *gin.Context) {
	id, doc, payloadSize, err := s.parseReading(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, verr := v1.Features(doc); verr != nil {
		slog.Warn("Rejected reading", "doc_id", id, "error", verr)
		details := map[string]interface{}{}
		var ve *httperr.ValidationError
		if errors.As(verr, &ve) {
			details["field"] = ve.Field
		}
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidReading,
			message:    verr.Error(),
			details:    details,
		})
		return
	}

	if _, ok := doc[s.timestampField]; !ok {
		doc[s.timestampField] = time.Now().UTC().Unix()
	}

	slog.Info("Received reading",
		"doc_id", id,
		"sensor_id", v1.Describe(doc, v1.FieldSensorID),
		"timestamp", v1.Describe(doc, s.timestampField),
		"payload_size", payloadSize)

	if err := s.persistReading(c.Request.Context(), id, doc); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "id": id})
}

// parseReading reads the body into a document. An "id" field names the
// document; without one a UUID is assigned.
func (s *Service) parseReading(c *gin.Context) (string, storage.Document, int, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return "", nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return "", nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_kb": maxBytes / 1024,
			},
		}
	}

	dec := json.NewDecoder(bytes.NewReader(bodyBytes))
	dec.UseNumber()
	var doc storage.Document
	if err := dec.Decode(&doc); err != nil || doc == nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return "", nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	id := uuid.NewString()
	if raw, ok := doc[fieldID]; ok {
		given, isString := raw.(string)
		if !isString || !validID.MatchString(given) {
			return "", nil, len(bodyBytes), invalidID()
		}
		id = given
		delete(doc, fieldID)
	}
	return id, doc, len(bodyBytes), nil
}

// persistReading writes the reading with the store's create-only primitive,
// so concurrent posts of one ID cannot overwrite each other. Numbers are
// normalized so every backend stores them as numbers.
func (s *Service) persistReading(ctx context.Context, id string, doc storage.Document) *ingestionError {
	raw := s.processor.Collections().Raw

	err := s.store.Create(ctx, raw, id, storage.Normalize(doc))
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		slog.Info("Duplicate reading rejected", "doc_id", id)
		return &ingestionError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpDuplicateReading,
			message:    msgDuplicateReading,
		}
	case err != nil:
		slog.Error("Failed to persist reading", "error", err, "doc_id", id)
		return internalError(msgPersistFailed)
	}
	return nil
}

// GetReadingHandler returns a raw reading and, when present, its calibrated
// counterpart.
func (s *Service) GetReadingHandler(c *gin.Context) {
	id := c.Param("id")
	if !validID.MatchString(id) {
		writeError(c, invalidID())
		return
	}
	ctx := c.Request.Context()
	cols := s.processor.Collections()

	raw, ierr := s.lookup(ctx, cols.Raw, id)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	resp := gin.H{"id": id, "reading": raw}
	calibrated, err := s.store.Get(ctx, cols.Calibrated, id)
	switch {
	case err == nil:
		resp["calibrated"] = calibrated
	case !errors.Is(err, storage.ErrNotFound):
		slog.Error("Failed to read calibrated document", "error", err, "doc_id", id)
		writeError(c, internalError(msgLookupFailed))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CalibrateHandler runs the processor once for a reading, outside the
// worker. Guards still apply.
func (s *Service) CalibrateHandler(c *gin.Context) {
	id := c.Param("id")
	if !validID.MatchString(id) {
		writeError(c, invalidID())
		return
	}
	ctx := c.Request.Context()

	doc, ierr := s.lookup(ctx, s.processor.Collections().Raw, id)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	res := s.processor.Process(ctx, id, doc)
	switch res.Outcome {
	case calibration.OutcomeInvalid:
		writeError(c, &ingestionError{
			statusCode: http.StatusUnprocessableEntity,
			errorType:  httperr.HttpCalibrationFailure,
			message:    res.Err.Error(),
			details:    map[string]interface{}{"outcome": res.Outcome},
		})
	case calibration.OutcomeFailed:
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpCalibrationFailure,
			message:    res.Err.Error(),
			details:    map[string]interface{}{"outcome": res.Outcome},
		})
	default:
		c.JSON(http.StatusOK, gin.H{"status": res.Outcome, "id": id})
	}
}

func (s *Service) lookup(ctx context.Context, collection, id string) (storage.Document, *ingestionError) {
	doc, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &ingestionError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpDocumentNotFound,
			message:    "Document not found",
			details:    map[string]interface{}{"collection": collection, "id": id},
		}
	}
	if err != nil {
		slog.Error("Failed to read document", "error", err, "collection", collection, "doc_id", id)
		return nil, internalError(msgLookupFailed)
	}
	return doc, nil
}

func invalidID() *ingestionError {
	return &ingestionError{
		statusCode: http.StatusBadRequest,
		errorType:  httperr.HttpInvalidDocumentID,
		message:    "Document ID must be 1-256 characters of letters, digits, '_', '-' or '='",
	}
}

func internalError(msg string) *ingestionError {
	return &ingestionError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msg,
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
