package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/timelapser/server/internal/models"
	"github.com/timelapser/server/internal/timeutil"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string          `json:"serverAddress"`
	DatabasePath  string          `json:"databasePath"`
	DatabaseURL   string          `json:"databaseUrl"`
	Storage       Storage         `json:"storage"`
	Capture       Capture         `json:"capture"`
	Timelapse     Timelapse       `json:"timelapse"`
	Operational   Operational     `json:"operational"`
	Security      Security        `json:"security"`
	Cameras       []CameraConfig  `json:"cameras"`
}

// CameraConfig describes one configured camera
type CameraConfig struct {
	Name                string          `json:"name"`
	URL                 string          `json:"url"`
	Enabled             bool            `json:"enabled"`
	Rotation            models.Rotation `json:"rotation"`
	DayCounterStartDate string          `json:"dayCounterStartDate,omitempty"` // YYYY-MM-DD
}

// Storage configuration for frames and rendered timelapses
type Storage struct {
	OutputDir   string `json:"outputDir"`
	CleanupDays int    `json:"cleanupDays"` // delete frames older than N days, 0 disables
}

// Capture settings for frame acquisition
type Capture struct {
	ImageType          string `json:"imageType"` // jpg, png
	ImageWidth         int    `json:"imageWidth"`
	ImageHeight        int    `json:"imageHeight"`
	Retries            int    `json:"retries"`
	RetryDelaySeconds  int    `json:"retryDelaySeconds"`
	TimeoutSeconds     int    `json:"timeoutSeconds"`
	MaxImageSizeKB     int    `json:"maxImageSizeKb"` // 0 disables compression
	CompressionQuality int    `json:"compressionQuality"`
	QualityStep        int    `json:"qualityStep"`
}

// Timelapse settings for video generation
type Timelapse struct {
	Enabled                  bool                  `json:"enabled"`
	CheckpointEnabled        bool                  `json:"checkpointEnabled"`
	GenerationMode           models.GenerationMode `json:"generationMode"`
	GenerationFrequencySec   int                   `json:"generationFrequencySeconds"`
	Format                   string                `json:"format"` // mp4, mov, webm
	FrameRate                int                   `json:"frameRate"`
	ContinuousMaxAgeHours    int                   `json:"continuousMaxAgeHours"` // 0 keeps forever
	UnhealthyFailureThreshold int                  `json:"unhealthyFailureThreshold"`
}

// Operational scheduling settings
type Operational struct {
	CaptureIntervalSeconds int    `json:"captureIntervalSeconds"`
	TimeStart              string `json:"timeStart"` // HH:MM
	TimeStop               string `json:"timeStop"`  // HH:MM
	Timezone               string `json:"timezone"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// CameraByName returns the configuration for a named camera, or nil
func (c *Config) CameraByName(name string) *CameraConfig {
	for i := range c.Cameras {
		if c.Cameras[i].Name == name {
			return &c.Cameras[i]
		}
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	return timeutil.LoadLocation(c.Operational.Timezone)
}

// CaptureInterval returns the inter-cycle sleep duration
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Operational.CaptureIntervalSeconds) * time.Second
}

// Window returns the parsed daily operating window. Config validation
// guarantees the strings parse; malformed values degrade to 00:00 (unbounded).
func (c *Config) Window() (start, stop timeutil.TimeOfDay) {
	start, _ = timeutil.ParseTimeOfDay(c.Operational.TimeStart)
	stop, _ = timeutil.ParseTimeOfDay(c.Operational.TimeStop)
	return start, stop
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":8080",
		DatabasePath:  "timelapser.db",
		Storage: Storage{
			OutputDir:   "./media",
			CleanupDays: 30,
		},
		Capture: Capture{
			ImageType:          "jpg",
			Retries:            3,
			RetryDelaySeconds:  5,
			TimeoutSeconds:     30,
			MaxImageSizeKB:     0,
			CompressionQuality: 75,
			QualityStep:        10,
		},
		Timelapse: Timelapse{
			Enabled:                   true,
			CheckpointEnabled:         true,
			GenerationMode:            models.GeneratePeriodic,
			GenerationFrequencySec:    3600,
			Format:                    "mp4",
			FrameRate:                 30,
			ContinuousMaxAgeHours:     24,
			UnhealthyFailureThreshold: 3,
		},
		Operational: Operational{
			CaptureIntervalSeconds: 900,
			TimeStart:              "00:00",
			TimeStop:               "00:00",
			Timezone:               "UTC",
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from the given path, applying defaults,
// environment overrides, and validation.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if outputDir := os.Getenv("STORAGE_OUTPUT_DIR"); outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Operational.Timezone = tz
	}
	if interval := os.Getenv("CAPTURE_INTERVAL_SECONDS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil && secs > 0 {
			cfg.Operational.CaptureIntervalSeconds = secs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure storage directory exists
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(cfg.Storage.OutputDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.OutputDir = absPath

	return cfg, nil
}

// Validate checks the parts of configuration that must be rejected at load
// time rather than discovered mid-cycle.
func (c *Config) Validate() error {
	if _, err := timeutil.ParseTimeOfDay(c.Operational.TimeStart); err != nil {
		return fmt.Errorf("timeStart: %w", err)
	}
	if _, err := timeutil.ParseTimeOfDay(c.Operational.TimeStop); err != nil {
		return fmt.Errorf("timeStop: %w", err)
	}
	if _, err := time.LoadLocation(c.Operational.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q", c.Operational.Timezone)
	}

	switch c.Timelapse.GenerationMode {
	case models.GenerateEveryCapture, models.GeneratePeriodic, models.GenerateManualOnly:
	default:
		return fmt.Errorf("invalid generation mode %q", c.Timelapse.GenerationMode)
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("camera with empty name")
		}
		if seen[cam.Name] {
			return fmt.Errorf("duplicate camera name %q", cam.Name)
		}
		seen[cam.Name] = true
		switch cam.Rotation {
		case "", models.RotationNone, models.RotationLeft, models.RotationRight, models.RotationInvert:
		default:
			return fmt.Errorf("camera %q: invalid rotation %q", cam.Name, cam.Rotation)
		}
	}

	return nil
}
