// Package report - Persists attendance reports to files, S3 and Redis.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nvr-ai/go-attendance/occupancy"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the published form of one image's attendance.
type Document struct {
	RunID     string    `json:"run_id"`
	Image     string    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
	occupancy.Report

	// Rows is the Row, Column, Status table written as CSV.
	Rows [][]string `json:"-"`
}

// NewDocument builds the document of a model's current state.
func NewDocument(runID, image string, at time.Time, model *occupancy.Model) Document {
	return Document{
		RunID:     runID,
		Image:     image,
		Timestamp: at,
		Report:    model.Report(),
		Rows:      model.Rows(),
	}
}

// Name is the base file name shared by the JSON and CSV outputs:
// attendance_<YYYYMMDD_HHMMSS>_<first 8 characters of the run ID>.
func (d Document) Name() string {
	name := "attendance_" + d.Timestamp.Format("20060102_150405")
	id := d.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	if id != "" {
		name += "_" + id
	}
	return name
}

// EncodeJSON renders the document as indented JSON.
func EncodeJSON(d Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode report")
	}
	return data, nil
}

// EncodeCSV renders the Row, Column, Status table.
func EncodeCSV(d Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(d.Rows); err != nil {
		return nil, errors.Wrap(err, "failed to encode csv")
	}
	return buf.Bytes(), nil
}

// Sink receives every finished document.
type Sink interface {
	Name() string
	Publish(ctx context.Context, d Document) error
}
