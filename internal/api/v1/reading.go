package v1

import (
	"fmt"

	coreerr "github.com/agrisense-lab/npkcal/internal/core/errors"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
)

// Raw reading fields.
const (
	FieldN            = "N"
	FieldP            = "P"
	FieldK            = "K"
	FieldPH           = "pH"
	FieldConductivity = "Conductivity"

	FieldTimestamp   = "timestamp"
	FieldSensorID    = "sensorId"
	FieldProcessed   = "processed"
	FieldProcessedAt = "processed_at"

	// Dead-letter marking for readings that exhausted their attempts.
	FieldCalibrationFailed   = "calibration_failed"
	FieldCalibrationError    = "calibration_error"
	FieldCalibrationFailedAt = "calibration_failed_at"

	FieldCalibratedTimestamp = "calibrated_timestamp"
)

// Channels lists the sensor channels in the fixed order the calibration
// model consumes and produces them.
var Channels = []string{FieldN, FieldP, FieldK, FieldPH, FieldConductivity}

// FeatureColumns are the model's input column names, positionally aligned
// with Channels.
var FeatureColumns = []string{"sensor_N", "sensor_P", "sensor_K", "sensor_PH", "sensor_EC"}

// CalibratedField returns the output field name for a channel, e.g. "calibrated_pH".
func CalibratedField(channel string) string {
	return "calibrated_" + channel
}

// Features extracts the model input row from a raw reading.
// Returns a *errors.ValidationError naming the first missing or non-numeric channel.
func Features(doc storage.Document) ([]float64, error) {
	row := make([]float64, len(Channels))
	for i, ch := range Channels {
		raw, ok := doc[ch]
		if !ok || raw == nil {
			return nil, &coreerr.ValidationError{Field: ch}
		}
		v, ok := storage.ToFloat(raw)
		if !ok {
			return nil, &coreerr.ValidationError{Field: ch, Reason: fmt.Sprintf("not numeric (%T)", raw)}
		}
		row[i] = v
	}
	return row, nil
}

// Calibrated builds the calibrated document: every raw field copied verbatim,
// overlaid with the calibrated channels and a server-assigned timestamp.
func Calibrated(raw storage.Document, outputs []float64) (storage.Document, error) {
	if len(outputs) != len(Channels) {
		return nil, fmt.Errorf("model returned %d outputs, want %d", len(outputs), len(Channels))
	}

	merged := raw.Clone()
	for i, ch := range Channels {
		merged[CalibratedField(ch)] = outputs[i]
	}
	merged[FieldCalibratedTimestamp] = storage.ServerTimestamp
	return merged, nil
}

// IsProcessed reports whether the raw reading is already marked processed.
func IsProcessed(doc storage.Document) bool {
	v, ok := doc[FieldProcessed].(bool)
	return ok && v
}

// IsDeadLettered reports whether the raw reading was given up on.
func IsDeadLettered(doc storage.Document) bool {
	v, ok := doc[FieldCalibrationFailed].(bool)
	return ok && v
}

// Describe returns a printable value for an optional field, "N/A" when absent.
func Describe(doc storage.Document, field string) string {
	v, ok := doc[field]
	if !ok || v == nil {
		return "N/A"
	}
	return fmt.Sprint(v)
}
