package profiler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Profiler times the stages of the attendance pipeline.
//
// It is safe for concurrent use, so one Profiler can be shared by every
// worker of a folder run.
type Profiler struct {
	mu             sync.Mutex
	startTime      time.Time
	maxSamples     int
	operationTimes map[string]*TimeTracker
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one operation's timings.
type OperationStats struct {
	Name  string
	Count int64
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// New creates a profiler keeping at most maxSamples durations per operation
// for the running average. Zero means 600.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = 600
	}
	return &Profiler{
		startTime:      time.Now(),
		maxSamples:     maxSamples,
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one completed run of an operation.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Stats returns the timings of every operation, sorted by name.
func (p *Profiler) Stats() []OperationStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]OperationStats, 0, len(p.operationTimes))
	for name, tracker := range p.operationTimes {
		stats = append(stats, OperationStats{
			Name:  name,
			Count: tracker.count,
			Avg:   tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Log writes one line per operation plus the current heap usage.
func (p *Profiler) Log(log logrus.FieldLogger) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	log.WithFields(logrus.Fields{
		"uptime":     time.Since(p.startTime).Truncate(time.Millisecond).String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": formatBytes(mem.HeapAlloc),
		"gc_cycles":  mem.NumGC,
	}).Info("runtime profile")

	for _, s := range p.Stats() {
		log.WithFields(logrus.Fields{
			"operation": s.Name,
			"count":     s.Count,
			"avg":       s.Avg.Truncate(time.Microsecond).String(),
			"min":       s.Min.Truncate(time.Microsecond).String(),
			"max":       s.Max.Truncate(time.Microsecond).String(),
		}).Info("operation timing")
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
