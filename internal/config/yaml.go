// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lumen/internal/log"
	"lumen/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory when no
// path is given.
const DefaultPath = "lumen.yaml"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error.
	LogFile   string          `yaml:"log_file"`  // Log destination while the TUI owns the terminal.
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Render    RenderConfig    `yaml:"render"`
	Transport TransportConfig `yaml:"transport"`
	Export    ExportConfig    `yaml:"export"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback, also the analysis block size.
	LowLatency      bool    `yaml:"low_latency"`
	Headless        bool    `yaml:"headless"` // Drive the audio cadence from a clock instead of a device.
	Volume          float64 `yaml:"volume"`
}

// AnalysisConfig holds feature extraction and onset detection settings.
type AnalysisConfig struct {
	Window         string        `yaml:"window"`
	MelBands       int           `yaml:"mel_bands"`
	Coefficients   int           `yaml:"coefficients"`
	OnsetThreshold float64       `yaml:"onset_threshold"`
	SilenceDB      float64       `yaml:"silence_db"`
	MinOnsetGap    time.Duration `yaml:"min_onset_gap"`
	AdaptiveWindow int           `yaml:"adaptive_window"`
}

// RenderConfig holds display cadence and resolution settings.
type RenderConfig struct {
	TargetFPS       int    `yaml:"target_fps"`
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	PreviewWidth    int    `yaml:"preview_width"`
	PreviewHeight   int    `yaml:"preview_height"`
	Seed            int64  `yaml:"seed"`              // Seed for control randomization, 0 for time based.
	Controls        string `yaml:"controls"`          // Optional YAML file with initial control values.
	RandomizeOnLoad bool   `yaml:"randomize_on_load"` // Draw a new look whenever a track is loaded.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddr           string        `yaml:"ws_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	LogFrames        bool          `yaml:"log_frames"` // Log every frame at debug level.
}

// ExportConfig holds snapshot, plot and clip capture settings.
type ExportConfig struct {
	OutputDir   string  `yaml:"output_dir"`
	ClipSeconds float64 `yaml:"clip_seconds"`
	BitDepth    int     `yaml:"bit_depth"`
}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// it tries DefaultPath and falls back to built-in defaults when that is missing.
// Environment overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not recognized", c.LogLevel))
	}
	if c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device must be >= %d", MinDeviceID))
	}
	if n := c.Audio.FramesPerBuffer; !bitint.IsPowerOfTwo(n) || n < MinFrameSize || n > MaxBufferFrames {
		suggest := min(MaxBufferFrames, max(MinFrameSize, bitint.NextPowerOfTwo(n)))
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be a power of two in [%d, %d], got %d (try %d)",
			MinFrameSize, MaxBufferFrames, n, suggest))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume must be in [0, 1], got %g", c.Audio.Volume))
	}
	if c.Analysis.MelBands <= 0 || c.Analysis.Coefficients <= 0 || c.Analysis.Coefficients > c.Analysis.MelBands {
		errs = append(errs, fmt.Errorf("analysis.coefficients (%d) must be in [1, mel_bands (%d)]", c.Analysis.Coefficients, c.Analysis.MelBands))
	}
	if c.Analysis.OnsetThreshold < 0 {
		errs = append(errs, errors.New("analysis.onset_threshold must not be negative"))
	}
	if c.Analysis.SilenceDB > 0 {
		errs = append(errs, errors.New("analysis.silence_db must be <= 0"))
	}
	if c.Analysis.MinOnsetGap < 0 || c.Analysis.AdaptiveWindow <= 0 {
		errs = append(errs, errors.New("analysis.min_onset_gap must be >= 0 and adaptive_window > 0"))
	}
	if c.Render.TargetFPS <= 0 || c.Render.TargetFPS > MaxTargetFPS {
		errs = append(errs, fmt.Errorf("render.target_fps must be in [1, %d], got %d", MaxTargetFPS, c.Render.TargetFPS))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.PreviewWidth <= 0 || c.Render.PreviewHeight <= 0 {
		errs = append(errs, errors.New("render dimensions must be positive"))
	}
	if c.Transport.WSEnabled && c.Transport.WSAddr == "" {
		errs = append(errs, errors.New("transport.ws_addr must be set when the websocket is enabled"))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Export.ClipSeconds <= 0 {
		errs = append(errs, errors.New("export.clip_seconds must be positive"))
	}
	if c.Export.BitDepth != 16 && c.Export.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("export.bit_depth must be 16 or 24, got %d", c.Export.BitDepth))
	}

	return errors.Join(errs...)
}

// Level resolves the effective log level, Debug taking precedence.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides applies LUMEN_* variables on top of file values. Values
// that fail to parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("LUMEN_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		} else {
			log.Warnf("config: ignoring LUMEN_DEBUG=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("LUMEN_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("LUMEN_HEADLESS"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Audio.Headless = b
		} else {
			log.Warnf("config: ignoring LUMEN_HEADLESS=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("LUMEN_WS_ADDR"); ok {
		c.Transport.WSAddr = val
	}
	if val, ok := os.LookupEnv("LUMEN_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
		} else {
			log.Warnf("config: ignoring LUMEN_UDP_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("LUMEN_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("LUMEN_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
		} else {
			log.Warnf("config: ignoring LUMEN_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}
