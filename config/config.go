// Package config - Loads the attendance configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-attendance/assign"
	"github.com/nvr-ai/go-attendance/grid"
	"github.com/pkg/errors"
)

// Config is loaded once per run and handed to every constructor.
type Config struct {
	// Classroom layout.
	Rows          int     `validate:"min=1"`
	Cols          int     `validate:"min=1"`
	RowBanding    bool
	BandTolerance float32 `validate:"gte=0"`

	// Assignment thresholds.
	MaxDistanceRatio float32 `validate:"gt=0"`
	FallbackDistance float32 `validate:"gt=0"`
	AssignmentPolicy string  `validate:"oneof=overwrite greedy"`

	// Detector.
	ModelPath           string   `validate:"required"`
	ModelClasses        []string `validate:"dive,required"`
	OnnxRuntimeLib      string
	ExecutionProvider   string  `validate:"oneof=cpu coreml cuda openvino"`
	ConfidenceThreshold float32 `validate:"gte=0,lte=1"`
	NMSThreshold        float32 `validate:"gt=0,lte=1"`

	// Input and output.
	InputDir  string `validate:"required"`
	OutputDir string `validate:"required"`
	Workers   int    `validate:"min=1,max=64"`

	// Optional sinks; empty disables them.
	DatabasePath string
	S3Bucket     string
	AWSRegion    string `validate:"required_with=S3Bucket"`
	RedisAddress string
	RedisChannel string `validate:"required_with=RedisAddress"`

	// Logging.
	LogLevel string `validate:"oneof=trace debug info warn error"`
	LogDir   string
	AppEnv   string
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Rows:                11,
		Cols:                3,
		BandTolerance:       0.5,
		MaxDistanceRatio:    0.4,
		FallbackDistance:    200,
		AssignmentPolicy:    string(assign.PolicyOverwrite),
		ModelPath:           "yolov8n.onnx",
		ExecutionProvider:   "cpu",
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
		InputDir:            "data/input",
		OutputDir:           "data/output",
		Workers:             4,
		RedisChannel:        "attendance:reports",
		LogLevel:            "info",
	}
}

// Load reads an optional .env file, then the environment, then validates.
//
// Arguments:
//   - envFiles: .env files to read; none means ".env" in the working directory.
//     Missing files are skipped.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if a file cannot be parsed or validation fails.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "failed to load env file %s", f)
		}
	}

	d := Default()
	cfg := &Config{
		Rows:                getEnvAsInt("CLASSROOM_ROWS", d.Rows),
		Cols:                getEnvAsInt("CLASSROOM_COLS", d.Cols),
		RowBanding:          getEnvAsBool("ROW_BANDING", d.RowBanding),
		BandTolerance:       getEnvAsFloat32("BAND_TOLERANCE", d.BandTolerance),
		MaxDistanceRatio:    getEnvAsFloat32("MAX_DISTANCE_RATIO", d.MaxDistanceRatio),
		FallbackDistance:    getEnvAsFloat32("FALLBACK_DISTANCE", d.FallbackDistance),
		AssignmentPolicy:    getEnv("ASSIGNMENT_POLICY", d.AssignmentPolicy),
		ModelPath:           getEnv("MODEL_PATH", d.ModelPath),
		ModelClasses:        getEnvAsList("MODEL_CLASSES"),
		OnnxRuntimeLib:      getEnv("ONNXRUNTIME_LIB", d.OnnxRuntimeLib),
		ExecutionProvider:   strings.ToLower(getEnv("EXECUTION_PROVIDER", d.ExecutionProvider)),
		ConfidenceThreshold: getEnvAsFloat32("CONFIDENCE_THRESHOLD", d.ConfidenceThreshold),
		NMSThreshold:        getEnvAsFloat32("NMS_THRESHOLD", d.NMSThreshold),
		InputDir:            getEnv("INPUT_DIR", d.InputDir),
		OutputDir:           getEnv("OUTPUT_DIR", d.OutputDir),
		Workers:             getEnvAsInt("WORKERS", d.Workers),
		DatabasePath:        getEnv("DATABASE_PATH", d.DatabasePath),
		S3Bucket:            getEnv("S3_BUCKET", d.S3Bucket),
		AWSRegion:           getEnv("AWS_REGION", d.AWSRegion),
		RedisAddress:        getEnv("REDIS_ADDRESS", d.RedisAddress),
		RedisChannel:        getEnv("REDIS_CHANNEL", d.RedisChannel),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", d.LogLevel)),
		LogDir:              getEnv("LOG_DIR", d.LogDir),
		AppEnv:              getEnv("APP_ENV", d.AppEnv),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Grid returns the grid builder configuration.
func (c *Config) Grid() grid.Config {
	return grid.Config{
		Rows:          c.Rows,
		Cols:          c.Cols,
		RowBanding:    c.RowBanding,
		BandTolerance: c.BandTolerance,
	}
}

// Assign returns the assignment engine configuration.
func (c *Config) Assign() assign.Config {
	return assign.Config{
		MaxDistanceRatio: c.MaxDistanceRatio,
		FallbackDistance: c.FallbackDistance,
		Policy:           assign.Policy(c.AssignmentPolicy),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
