// Command attendance takes classroom attendance from photos of the room.
//
// Usage:
//
//	attendance --image data/input/room1.jpg
//	attendance --folder data/input --model yolov8-classroom.onnx
//
// Without --image or --folder every image in INPUT_DIR is processed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-attendance/config"
	"github.com/nvr-ai/go-attendance/inference"
	"github.com/nvr-ai/go-attendance/logger"
	"github.com/nvr-ai/go-attendance/pipeline"
	"github.com/nvr-ai/go-attendance/report"
	"github.com/nvr-ai/go-attendance/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		imagePath  string
		folderPath string
		modelPath  string
		envFile    string
		noOverlay  bool
	)
	flag.StringVar(&imagePath, "image", "", "Path to a single classroom image")
	flag.StringVar(&folderPath, "folder", "", "Path to a folder of classroom images (default INPUT_DIR)")
	flag.StringVar(&modelPath, "model", "", "Path to the YOLO ONNX model (overrides MODEL_PATH)")
	flag.StringVar(&envFile, "env", ".env", "Optional .env file")
	flag.BoolVar(&noOverlay, "no-overlay", false, "Do not write annotated images")
	flag.Parse()

	if imagePath != "" && folderPath != "" {
		fmt.Fprintln(os.Stderr, "--image and --folder are mutually exclusive")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}
	if imagePath == "" && folderPath == "" {
		folderPath = cfg.InputDir
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Dir: cfg.LogDir, Env: cfg.AppEnv})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, imagePath, folderPath, !noOverlay); err != nil {
		log.WithError(err).Error("attendance run failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, imagePath, folderPath string, annotate bool) error {
	provider, err := inference.ParseProvider(cfg.ExecutionProvider)
	if err != nil {
		return err
	}

	detector, err := inference.NewONNXDetector(inference.Config{
		ModelPath:           cfg.ModelPath,
		LibraryPath:         cfg.OnnxRuntimeLib,
		Provider:            provider,
		Classes:             cfg.ModelClasses,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		NMSThreshold:        cfg.NMSThreshold,
	})
	if err != nil {
		return errors.Wrap(err, "failed to load detector")
	}
	defer detector.Close()
	log.WithFields(logrus.Fields{"model": cfg.ModelPath, "provider": provider}).Info("loaded detector")

	sinks, closeSinks, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	opts := pipeline.Options{
		Detector:  detector,
		Grid:      cfg.Grid(),
		Assign:    cfg.Assign(),
		Sinks:     sinks,
		OutputDir: cfg.OutputDir,
		Annotate:  annotate,
		Workers:   cfg.Workers,
		Logger:    log,
	}

	if cfg.DatabasePath != "" {
		db, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Store = db
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	var last *pipeline.Result
	if imagePath != "" {
		last, err = p.ProcessImage(ctx, imagePath)
		if err != nil {
			return err
		}
	} else {
		results, err := p.ProcessFolder(ctx, folderPath)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			last = results[len(results)-1]
		}
	}

	p.Profiler().Log(log)

	if last == nil {
		log.Warn("no image was processed")
		return nil
	}
	fmt.Printf("Attendance for %s\n", last.Image)
	return last.Model.Render(os.Stdout)
}

// buildSinks returns the report sinks enabled by cfg. The file sink is always
// on; S3 and Redis follow their addresses.
func buildSinks(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]report.Sink, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.WithError(err).Warn("failed to close sink")
			}
		}
	}

	files, err := report.NewFileSink(cfg.OutputDir)
	if err != nil {
		return nil, closeAll, err
	}
	sinks := []report.Sink{files}

	if cfg.S3Bucket != "" {
		s3, err := report.NewS3Sink(cfg.AWSRegion, cfg.S3Bucket, "reports")
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, s3)
		log.WithField("bucket", cfg.S3Bucket).Info("uploading reports to s3")
	}

	if cfg.RedisAddress != "" {
		rs, err := report.NewRedisSink(ctx, report.RedisOptions{Address: cfg.RedisAddress, Channel: cfg.RedisChannel})
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, rs.Close)
		sinks = append(sinks, rs)
		log.WithField("channel", cfg.RedisChannel).Info("publishing reports to redis")
	}

	return sinks, closeAll, nil
}
