// Package pipeline - Runs detection, grid building, assignment and reporting per image.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/nvr-ai/go-attendance/assign"
	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/grid"
	"github.com/nvr-ai/go-attendance/inference"
	"github.com/nvr-ai/go-attendance/logger"
	"github.com/nvr-ai/go-attendance/occupancy"
	"github.com/nvr-ai/go-attendance/overlay"
	"github.com/nvr-ai/go-attendance/profiler"
	"github.com/nvr-ai/go-attendance/report"
	"github.com/nvr-ai/go-attendance/store"
	"github.com/nvr-ai/go-attendance/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RunStore records finished runs. *store.DB implements it.
type RunStore interface {
	InsertRun(run *store.Run) (string, error)
}

// Options wires a Pipeline. Detector is required; everything else is optional.
type Options struct {
	Detector inference.Detector
	Grid     grid.Config
	Assign   assign.Config
	Sinks    []report.Sink
	Store    RunStore

	// OutputDir receives the annotated images when Annotate is set.
	OutputDir string
	Annotate  bool

	// Workers bounds ProcessFolder; zero means 1.
	Workers int

	Profiler *profiler.Profiler
	Logger   logrus.FieldLogger

	// LoadImage and SaveOverlay default to inference.LoadImage and overlay.Save.
	LoadImage   func(path string) (image.Image, error)
	SaveOverlay func(path string, img image.Image, a overlay.Annotations) error
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline processes classroom photos into attendance reports.
//
// The detector is shared; every image gets its own grid builder, assignment
// engine and occupancy model, so images can be processed concurrently.
type Pipeline struct {
	opts Options
	log  logrus.FieldLogger
}

// Result is everything known about one processed image.
type Result struct {
	RunID         string
	Image         string
	Persons       []common.Detection
	Tables        []common.Detection
	Grid          *grid.Grid
	Match         assign.Result
	Model         *occupancy.Model
	Report        occupancy.Report
	AnnotatedPath string
}

// New validates the options and returns a pipeline.
//
// Arguments:
//   - opts: The detector, stage configurations and optional sinks.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if the detector is missing or a stage configuration is invalid.
func New(opts Options) (*Pipeline, error) {
	if opts.Detector == nil {
		return nil, errors.New("pipeline requires a detector")
	}
	if _, err := grid.NewBuilder(opts.Grid); err != nil {
		return nil, errors.Wrap(err, "invalid grid configuration")
	}
	engine, err := assign.NewEngine(opts.Assign)
	if err != nil {
		return nil, errors.Wrap(err, "invalid assignment configuration")
	}
	opts.Assign = engine.Config()
	if opts.Annotate {
		if opts.OutputDir == "" {
			return nil, errors.New("annotation requires an output directory")
		}
		if err := util.EnsureDir(opts.OutputDir); err != nil {
			return nil, err
		}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.LoadImage == nil {
		opts.LoadImage = inference.LoadImage
	}
	if opts.SaveOverlay == nil {
		opts.SaveOverlay = overlay.Save
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{opts: opts, log: opts.Logger}, nil
}

// Profiler returns the stage timings collected so far.
func (p *Pipeline) Profiler() *profiler.Profiler {
	return p.opts.Profiler
}

// ProcessImage loads the image at path and processes it.
func (p *Pipeline) ProcessImage(ctx context.Context, path string) (*Result, error) {
	done := p.opts.Profiler.StartOperation("load")
	img, err := p.opts.LoadImage(path)
	done()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return p.Process(ctx, path, img)
}

// Process runs every stage on an already decoded image.
//
// Arguments:
//   - ctx: Cancels detection and publishing.
//   - name: The image path, used in reports and output names.
//   - img: The decoded image.
//
// Returns:
//   - *Result: The detections, grid, assignments and attendance of the image.
//   - error: An error if detection fails or a sink rejects the report.
func (p *Pipeline) Process(ctx context.Context, name string, img image.Image) (*Result, error) {
	log := p.log.WithField("image", name)
	start := p.opts.Now()

	done := p.opts.Profiler.StartOperation("detect")
	detections, err := p.opts.Detector.Detect(ctx, img)
	done()
	if err != nil {
		return nil, errors.Wrapf(err, "detection failed for %s", name)
	}

	persons, tables := common.Split(detections)
	log.WithFields(logrus.Fields{"persons": len(persons), "tables": len(tables)}).Info("detected objects")

	// Validated in New.
	builder, _ := grid.NewBuilder(p.opts.Grid)
	engine, _ := assign.NewEngine(p.opts.Assign)
	model, _ := occupancy.NewModel(p.opts.Grid.Rows, p.opts.Grid.Cols)

	done = p.opts.Profiler.StartOperation("grid")
	g := builder.Build(tables)
	done()
	if g.Absent() {
		log.Warn("no table grid created")
	}

	done = p.opts.Profiler.StartOperation("assign")
	match := engine.Match(persons, g)
	done()

	_, rep := model.Update(match.Assignments)
	log.WithFields(logrus.Fields{
		"assigned":    len(match.Assignments),
		"unassigned":  match.Unassigned,
		"overwritten": match.Overwritten,
		"cutoff":      match.Cutoff,
		"present":     rep.Present,
		"percentage":  rep.Percentage,
	}).Info("assigned persons to tables")

	result := &Result{
		RunID:   store.NewRunID(),
		Image:   name,
		Persons: persons,
		Tables:  tables,
		Grid:    g,
		Match:   match,
		Model:   model,
		Report:  rep,
	}

	if err := p.persist(ctx, result, start); err != nil {
		return nil, err
	}

	if p.opts.Annotate {
		done = p.opts.Profiler.StartOperation("overlay")
		result.AnnotatedPath = overlay.OutputPath(p.opts.OutputDir, name)
		err := p.opts.SaveOverlay(result.AnnotatedPath, img, overlay.Annotate(persons, tables, model.Seats(g)))
		done()
		if err != nil {
			// Overlay failures do not fail the image.
			log.WithError(err).Error("failed to save annotated image")
			result.AnnotatedPath = ""
		} else {
			log.WithField("path", result.AnnotatedPath).Info("saved visualization")
		}
	}

	return result, nil
}

// persist publishes the report to every sink and records the run. Every sink
// is tried; the first failure is returned.
func (p *Pipeline) persist(ctx context.Context, r *Result, at time.Time) error {
	done := p.opts.Profiler.StartOperation("publish")
	defer done()

	var first error
	doc := report.NewDocument(r.RunID, r.Image, at, r.Model)
	for _, sink := range p.opts.Sinks {
		if err := sink.Publish(ctx, doc); err != nil {
			p.log.WithFields(logrus.Fields{"image": r.Image, "sink": sink.Name()}).WithError(err).Error("failed to publish report")
			if first == nil {
				first = errors.Wrapf(err, "%s sink", sink.Name())
			}
		}
	}

	if p.opts.Store != nil {
		_, err := p.opts.Store.InsertRun(&store.Run{
			ID:         r.RunID,
			Image:      r.Image,
			CreatedAt:  at.UTC(),
			Rows:       p.opts.Grid.Rows,
			Cols:       p.opts.Grid.Cols,
			Policy:     string(p.opts.Assign.Policy),
			Cutoff:     r.Match.Cutoff,
			Persons:    len(r.Persons),
			Tables:     len(r.Tables),
			Unassigned: r.Match.Unassigned,
			Report:     r.Report,
		})
		if err != nil {
			p.log.WithField("image", r.Image).WithError(err).Error("failed to record run")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
