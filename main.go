package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lumen/cmd"
	"lumen/internal/app"
	"lumen/internal/audio"
	"lumen/internal/config"
	"lumen/internal/decode"
	"lumen/internal/log"
	"lumen/internal/tui"
	"lumen/pkg/build"

	"golang.org/x/term"
)

// main is the entry point for lumen. The program flow is divided into three
// phases:
//
// 1. Startup (cold path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (version, device listing)
//   - Initialize PortAudio, decode the track, build the session
//
// 2. Playback (hot path):
//   - Audio callbacks drive analysis and conditioning
//   - The render loop publishes frames to the transports
//   - The monitor or the log shows progress
//
// 3. Shutdown (cold path):
//   - Triggered by a signal, the monitor or the end of the track
//   - Finish any clip, close transports and the stream
func main() {
	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(opts *cmd.Options) error {
	switch opts.Command {
	case "":
		return nil
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return nil
	case cmd.CommandList:
		return listDevices(opts.ListTUI)
	}

	// ==================== STARTUP PHASE (Cold Path) ====================

	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	log.SetLevel(cfg.Level())

	useTUI := !opts.NoTUI && term.IsTerminal(int(os.Stdout.Fd()))
	if useTUI {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	if !cfg.Audio.Headless {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	track, err := decode.File(opts.File)
	if err != nil {
		return err
	}

	session, err := app.New(cfg, track)
	if err != nil {
		return err
	}

	// ==================== PLAYBACK PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		session.Close()
		return err
	}
	announce(cfg, session, useTUI)

	var uiErr error
	if useTUI {
		uiErr = tui.RunMonitor(session, session.Done())
	} else {
		session.Wait(ctx)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := session.Close(); err != nil {
		log.Errorf("error closing session: %v", err)
	}
	return uiErr
}

func announce(cfg *config.Config, session *app.Session, useTUI bool) {
	name := build.GetBuildFlags().Name
	if addr := session.WebSocketAddr(); addr != "" {
		log.Infof("frames on ws://%s/ws", addr)
	}
	if cfg.Transport.UDPEnabled {
		log.Infof("uniform packets to udp://%s every %v", cfg.Transport.UDPTargetAddress, cfg.Transport.UDPSendInterval)
	}
	if !useTUI {
		fmt.Printf("%s playing %s, press Ctrl+C to stop.\n", name, session.Status().Track)
	}
}

func listDevices(interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if interactive {
		return tui.StartDeviceListUI()
	}
	return audio.ListDevices(os.Stdout)
}
