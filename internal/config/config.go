package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// envPrefix namespaces environment overrides
const envPrefix = "SPOTLIGHT_"

// Config holds all application configuration
type Config struct {
	Annotations AnnotationsConfig `yaml:"annotations" toml:"annotations"`
	Overlay     OverlayConfig     `yaml:"overlay" toml:"overlay"`
	Edit        EditConfig        `yaml:"edit" toml:"edit"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg" toml:"ffmpeg"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
}

type AnnotationsConfig struct {
	Path              string   `yaml:"path" toml:"path"`
	Subject           string   `yaml:"subject" toml:"subject"`
	PreferredIdentity string   `yaml:"preferred_identity" toml:"preferred_identity"`
	AnchorLabel       string   `yaml:"anchor_label" toml:"anchor_label"`
	RequiredLabels    []string `yaml:"required_labels" toml:"required_labels"`
	// IntervalMode is "subject" or "raw"
	IntervalMode string `yaml:"interval_mode" toml:"interval_mode"`
}

type OverlayConfig struct {
	Tolerance float64 `yaml:"tolerance" toml:"tolerance"`
	Mode      string  `yaml:"mode" toml:"mode"`
	Window    string  `yaml:"window" toml:"window"`
	WindowW   float64 `yaml:"window_w" toml:"window_w"`
	WindowH   float64 `yaml:"window_h" toml:"window_h"`
}

type EditConfig struct {
	SourceVideo       string        `yaml:"source_video" toml:"source_video"`
	OutputDir         string        `yaml:"output_dir" toml:"output_dir"`
	OutputFileName    string        `yaml:"output_file_name" toml:"output_file_name"`
	WorkWidth         int           `yaml:"work_width" toml:"work_width"`
	WorkHeight        int           `yaml:"work_height" toml:"work_height"`
	OutWidth          int           `yaml:"out_width" toml:"out_width"`
	OutHeight         int           `yaml:"out_height" toml:"out_height"`
	DropEmptySegments bool          `yaml:"drop_empty_segments" toml:"drop_empty_segments"`
	Timeout           time.Duration `yaml:"timeout" toml:"timeout"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path" toml:"binary_path"`
	ProbePath  string `yaml:"probe_path" toml:"probe_path"`
	Threads    int    `yaml:"threads" toml:"threads"`
	Preset     string `yaml:"preset" toml:"preset"`
	CRF        int    `yaml:"crf" toml:"crf"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Load reads configuration from file or returns defaults. Environment
// variables (optionally from a .env file) override file values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// OutputPath returns where a render named fileName is written. Only the
// base name is used so requests cannot escape the output directory.
func (c *Config) OutputPath(fileName string) string {
	if fileName == "" {
		fileName = c.Edit.OutputFileName
	}
	return filepath.Join(c.Edit.OutputDir, filepath.Base(fileName))
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ANNOTATIONS":        &c.Annotations.Path,
		"SUBJECT":            &c.Annotations.Subject,
		"PREFERRED_IDENTITY": &c.Annotations.PreferredIdentity,
		"SOURCE_VIDEO":       &c.Edit.SourceVideo,
		"OUTPUT_DIR":         &c.Edit.OutputDir,
		"FFMPEG":             &c.FFmpeg.BinaryPath,
		"ADDR":               &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "TOLERANCE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTOLERANCE: %w", envPrefix, err)
		}
		c.Overlay.Tolerance = f
	}
	if v, ok := os.LookupEnv(envPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT: %w", envPrefix, err)
		}
		c.Edit.Timeout = d
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Annotations: AnnotationsConfig{
			Path:              "./public/rekognition.json",
			Subject:           "Jeff Bezos",
			PreferredIdentity: "Jeff Bezos",
			AnchorLabel:       "Man",
			RequiredLabels: []string{
				"Adult", "Male", "Man", "Face",
				"Clothing", "Formal Wear", "Suit", "Shirt",
			},
			IntervalMode: "subject",
		},
		Overlay: OverlayConfig{
			Tolerance: 0.5,
			Mode:      "window",
			Window:    "700x700",
		},
		Edit: EditConfig{
			SourceVideo:       "./public/source.mp4",
			OutputDir:         "./public",
			OutputFileName:    "subject_cropped.mp4",
			WorkWidth:         1280,
			WorkHeight:        720,
			OutWidth:          1280,
			OutHeight:         720,
			DropEmptySegments: true,
			Timeout:           5 * time.Minute,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Preset:     "medium",
			CRF:        23,
		},
		Server: ServerConfig{
			Addr: ":3000",
		},
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	candidates := []string{
		"./spotlight.yaml",
		"./spotlight.yml",
		"./spotlight.toml",
		filepath.Join(os.Getenv("HOME"), ".spotlight", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
