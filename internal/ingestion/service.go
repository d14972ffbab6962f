// Package ingestion serves the readings HTTP surface: accepting raw sensor
// readings, reading them back and re-running calibration on demand.
package ingestion

import (
	"context"

	"github.com/agrisense-lab/npkcal/internal/calibration"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// ReadingProcessor is the part of *calibration.Processor the handlers use.
type ReadingProcessor interface {
	Process(ctx context.Context, id string, doc storage.Document) calibration.Result
	Collections() calibration.Collections
}

type Service struct {
	store            storage.DocumentStore
	processor        ReadingProcessor
	timestampField   string
	maxBodySizeBytes int
}

func NewService(store storage.DocumentStore, processor ReadingProcessor, timestampField string, maxBodySizeKB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if processor == nil {
		panic("ingestion: processor must not be nil")
	}
	if timestampField == "" {
		panic("ingestion: timestamp field is required")
	}
	if maxBodySizeKB <= 0 {
		maxBodySizeKB = 64 // a reading is a handful of numbers
	}
	return &Service{
		store:            store,
		processor:        processor,
		timestampField:   timestampField,
		maxBodySizeBytes: maxBodySizeKB * 1024,
	}
}

// RegisterRoutes registers the readings routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/readings", s.IngestHandler)
	r.GET("/v1/readings/:id", s.GetReadingHandler)
	r.POST("/v1/readings/:id/calibrate", s.CalibrateHandler)
}
