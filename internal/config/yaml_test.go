// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lumen/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "lumen.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("FramesPerBuffer = %d, want %d", cfg.Audio.FramesPerBuffer, DefaultFramesPerBuffer)
	}
	if cfg.Render.TargetFPS != DefaultTargetFPS {
		t.Errorf("TargetFPS = %d, want %d", cfg.Render.TargetFPS, DefaultTargetFPS)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
log_level: warn
audio:
  frames_per_buffer: 1024
  headless: true
render:
  target_fps: 30
transport:
  udp_enabled: true
  udp_send_interval: 10ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Audio.FramesPerBuffer != 1024 || !cfg.Audio.Headless {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if cfg.Render.TargetFPS != 30 {
		t.Errorf("TargetFPS = %d, want 30", cfg.Render.TargetFPS)
	}
	if cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("UDPSendInterval = %v, want 10ms", cfg.Transport.UDPSendInterval)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Analysis.MelBands != DefaultMelBands {
		t.Errorf("MelBands = %d, want %d", cfg.Analysis.MelBands, DefaultMelBands)
	}
	if cfg.Level() != log.LevelWarn {
		t.Errorf("Level() = %v, want WARN", cfg.Level())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LUMEN_DEBUG", "true")
	t.Setenv("LUMEN_HEADLESS", "1")
	t.Setenv("LUMEN_WS_ADDR", "0.0.0.0:9999")
	t.Setenv("LUMEN_UDP_ENABLED", "true")
	t.Setenv("LUMEN_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("LUMEN_UDP_SEND_INTERVAL", "5ms")
	t.Setenv("LUMEN_LOG_LEVEL", "error")

	path := writeTempConfig(t, "debug: false\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !cfg.Debug || cfg.Level() != log.LevelDebug {
		t.Errorf("debug override not applied")
	}
	if !cfg.Audio.Headless {
		t.Errorf("headless override not applied")
	}
	if cfg.Transport.WSAddr != "0.0.0.0:9999" {
		t.Errorf("WSAddr = %q", cfg.Transport.WSAddr)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("udp overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPSendInterval != 5*time.Millisecond {
		t.Errorf("UDPSendInterval = %v", cfg.Transport.UDPSendInterval)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_BadEnvIgnored(t *testing.T) {
	t.Setenv("LUMEN_UDP_SEND_INTERVAL", "soon")
	path := writeTempConfig(t, "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Transport.UDPSendInterval != DefaultUDPSendInterval {
		t.Errorf("UDPSendInterval = %v, want default", cfg.Transport.UDPSendInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"frames not pow2", func(c *Config) { c.Audio.FramesPerBuffer = 500 }, "got 500 (try 512)"},
		{"frames too small", func(c *Config) { c.Audio.FramesPerBuffer = 32 }, "(try 64)"},
		{"device", func(c *Config) { c.Audio.OutputDevice = -2 }, "output_device"},
		{"volume", func(c *Config) { c.Audio.Volume = 1.5 }, "volume"},
		{"coefficients", func(c *Config) { c.Analysis.Coefficients = 40 }, "coefficients"},
		{"silence", func(c *Config) { c.Analysis.SilenceDB = 3 }, "silence_db"},
		{"fps", func(c *Config) { c.Render.TargetFPS = 0 }, "target_fps"},
		{"ws addr", func(c *Config) { c.Transport.WSAddr = "" }, "ws_addr"},
		{"udp addr", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"udp interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "udp_send_interval"},
		{"bit depth", func(c *Config) { c.Export.BitDepth = 8 }, "bit_depth"},
		{"clip", func(c *Config) { c.Export.ClipSeconds = 0 }, "clip_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
