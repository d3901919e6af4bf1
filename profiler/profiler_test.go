package profiler

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	p := New(0)
	p.Record("detect", 10*time.Millisecond)
	p.Record("detect", 30*time.Millisecond)
	p.Record("assign", time.Millisecond)

	stats := p.Stats()
	require.Len(t, stats, 2)

	assert.Equal(t, OperationStats{Name: "assign", Count: 1, Avg: time.Millisecond, Min: time.Millisecond, Max: time.Millisecond}, stats[0])
	assert.Equal(t, "detect", stats[1].Name)
	assert.Equal(t, int64(2), stats[1].Count)
	assert.Equal(t, 20*time.Millisecond, stats[1].Avg)
	assert.Equal(t, 10*time.Millisecond, stats[1].Min)
	assert.Equal(t, 30*time.Millisecond, stats[1].Max)
}

func TestRecord_WindowedAverage(t *testing.T) {
	p := New(2)
	p.Record("grid", 100*time.Millisecond)
	p.Record("grid", 2*time.Millisecond)
	p.Record("grid", 4*time.Millisecond)

	stats := p.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(3), stats[0].Count)
	assert.Equal(t, 3*time.Millisecond, stats[0].Avg)
	assert.Equal(t, 100*time.Millisecond, stats[0].Max)
}

func TestStartOperation_Concurrent(t *testing.T) {
	p := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := p.StartOperation("image")
			done()
		}()
	}
	wg.Wait()

	stats := p.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(8), stats[0].Count)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	p := New(0)
	p.Record("occupancy", time.Millisecond)
	p.Log(log)

	out := buf.String()
	assert.Contains(t, out, "runtime profile")
	assert.Contains(t, out, "operation=occupancy")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
