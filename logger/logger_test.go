package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.WithFields(Fields{"image": "class.jpg"}).Warn("no tables detected")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "no tables detected")
	assert.Contains(t, out, "class.jpg")
}

func TestNew_DefaultsToInfo(t *testing.T) {
	log, err := New(Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileDisabledInTestEnv(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Dir: dir, Env: "test", Output: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Info("stderr only")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNew_RotatedFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Dir: dir, Output: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Info("written to file")

	matches, err := filepath.Glob(filepath.Join(dir, "attendance-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
