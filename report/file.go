package report

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-attendance/util"
	"github.com/pkg/errors"
)

// FileSink writes <name>.json and <name>.csv into a directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the output directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileSink{dir: dir}, nil
}

// Name identifies the sink in logs.
func (s *FileSink) Name() string {
	return "file"
}

// Publish writes both files.
func (s *FileSink) Publish(_ context.Context, d Document) error {
	_, _, err := s.Write(d)
	return err
}

// Write writes both files and returns their paths.
func (s *FileSink) Write(d Document) (jsonPath, csvPath string, err error) {
	data, err := EncodeJSON(d)
	if err != nil {
		return "", "", err
	}
	jsonPath = filepath.Join(s.dir, d.Name()+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", errors.Wrapf(err, "failed to write %s", jsonPath)
	}

	data, err = EncodeCSV(d)
	if err != nil {
		return "", "", err
	}
	csvPath = filepath.Join(s.dir, d.Name()+".csv")
	if err := os.WriteFile(csvPath, data, 0o644); err != nil {
		return "", "", errors.Wrapf(err, "failed to write %s", csvPath)
	}

	return jsonPath, csvPath, nil
}
