package config

import "time"

// Defaults and hardware limits for the engine.
const (
	DefaultLogLevel        = "info"
	DefaultLogFile         = "lumen.log"
	DefaultOutputDevice    = MinDeviceID
	DefaultFramesPerBuffer = 512
	DefaultVolume          = 1.0

	DefaultWindow         = "Hann"
	DefaultMelBands       = 26
	DefaultCoefficients   = 13
	DefaultOnsetThreshold = 0.3
	DefaultSilenceDB      = -70.0
	DefaultMinOnsetGap    = 20 * time.Millisecond
	DefaultAdaptiveWindow = 8

	DefaultTargetFPS     = 60
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultPreviewWidth  = 320
	DefaultPreviewHeight = 180

	DefaultWSAddr           = "127.0.0.1:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond

	DefaultExportDir   = "./captures"
	DefaultClipSeconds = 10.0
	DefaultBitDepth    = 16

	MinDeviceID     = -1 // -1 represents the system default device
	MinFrameSize    = 64
	MaxBufferFrames = 8192
	MaxTargetFPS    = 240
)

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Volume:          DefaultVolume,
		},
		Analysis: AnalysisConfig{
			Window:         DefaultWindow,
			MelBands:       DefaultMelBands,
			Coefficients:   DefaultCoefficients,
			OnsetThreshold: DefaultOnsetThreshold,
			SilenceDB:      DefaultSilenceDB,
			MinOnsetGap:    DefaultMinOnsetGap,
			AdaptiveWindow: DefaultAdaptiveWindow,
		},
		Render: RenderConfig{
			TargetFPS:     DefaultTargetFPS,
			Width:         DefaultWidth,
			Height:        DefaultHeight,
			PreviewWidth:  DefaultPreviewWidth,
			PreviewHeight: DefaultPreviewHeight,
		},
		Transport: TransportConfig{
			WSEnabled:        true,
			WSAddr:           DefaultWSAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
		Export: ExportConfig{
			OutputDir:   DefaultExportDir,
			ClipSeconds: DefaultClipSeconds,
			BitDepth:    DefaultBitDepth,
		},
	}
}
