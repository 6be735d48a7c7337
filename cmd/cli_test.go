package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"lumen/internal/config"
)

// isolate runs the test in an empty directory so no lumen.yaml is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, env := range []string{"LUMEN_DEBUG", "LUMEN_LOG_LEVEL", "LUMEN_HEADLESS", "LUMEN_WS_ADDR",
		"LUMEN_UDP_ENABLED", "LUMEN_UDP_TARGET_ADDRESS", "LUMEN_UDP_SEND_INTERVAL"} {
		if _, ok := os.LookupEnv(env); ok {
			t.Setenv(env, "")
			os.Unsetenv(env)
		}
	}
}

func TestParseArgsCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		wantErr bool
	}{
		{"no command", nil, "", false},
		{"play", []string{"play", "song.mp3"}, CommandPlay, false},
		{"play without file", []string{"play"}, "", true},
		{"play two files", []string{"play", "a.wav", "b.wav"}, "", true},
		{"list", []string{"list"}, CommandList, false},
		{"version", []string{"version"}, CommandVersion, false},
		{"unknown flag", []string{"play", "--nope", "a.wav"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if err == nil && opts.Command != tt.command {
				t.Errorf("Command = %q, want %q", opts.Command, tt.command)
			}
		})
	}
}

func TestListTUIFlag(t *testing.T) {
	opts, err := ParseArgs([]string{"list", "--tui"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.ListTUI {
		t.Error("ListTUI = false")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	isolate(t)

	opts, err := ParseArgs([]string{"play", "song.wav",
		"--headless", "-d", "3", "-b", "1024", "--fps", "30", "--no-ws",
		"--udp", "10.0.0.2:9000", "-o", "out", "--seed", "42", "--randomize", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.File != "song.wav" {
		t.Errorf("File = %q", opts.File)
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	checks := []struct {
		name string
		ok   bool
	}{
		{"headless", cfg.Audio.Headless},
		{"device", cfg.Audio.OutputDevice == 3},
		{"frames per buffer", cfg.Audio.FramesPerBuffer == 1024},
		{"fps", cfg.Render.TargetFPS == 30},
		{"websocket disabled", !cfg.Transport.WSEnabled},
		{"udp enabled", cfg.Transport.UDPEnabled && cfg.Transport.UDPTargetAddress == "10.0.0.2:9000"},
		{"output dir", cfg.Export.OutputDir == "out"},
		{"seed", cfg.Render.Seed == 42},
		{"randomize", cfg.Render.RandomizeOnLoad},
		{"debug", cfg.Debug},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s not applied", c.name)
		}
	}
}

func TestUnsetFlagsKeepFileValues(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	data := "render:\n  target_fps: 24\ntransport:\n  ws_addr: 0.0.0.0:7000\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := ParseArgs([]string{"play", "song.wav", "--config", path})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := opts.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Render.TargetFPS != 24 {
		t.Errorf("TargetFPS = %d, want the file's 24", cfg.Render.TargetFPS)
	}
	if cfg.Transport.WSAddr != "0.0.0.0:7000" {
		t.Errorf("WSAddr = %q, want the file's value", cfg.Transport.WSAddr)
	}
	if cfg.Transport.UDPSendInterval != config.DefaultUDPSendInterval {
		t.Errorf("UDPSendInterval = %v", cfg.Transport.UDPSendInterval)
	}
}

func TestInvalidFlagValue(t *testing.T) {
	isolate(t)
	opts, err := ParseArgs([]string{"play", "song.wav", "-b", "1000"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opts.LoadConfig(); err == nil {
		t.Error("expected validation error for a non power of two buffer")
	}
}
