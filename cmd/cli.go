package cmd

import (
	"lumen/internal/config"
	"lumen/pkg/build"
	"time"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandPlay    = "play"
	CommandList    = "list"
	CommandVersion = "version"
)

// Options is the parsed command line. Flags only override the config file
// when they are given explicitly.
type Options struct {
	Command    string
	ConfigPath string
	File       string
	ListTUI    bool
	NoTUI      bool
	Verbose    bool

	device          int
	framesPerBuffer int
	lowLatency      bool
	headless        bool
	volume          float64
	fps             int
	wsAddr          string
	noWS            bool
	udpTarget       string
	udpInterval     time.Duration
	outputDir       string
	clipSeconds     float64
	controlsFile    string
	seed            int64
	randomize       bool

	overrides []func(*config.Config)
}

// LoadConfig reads the config file, applies the explicit flags on top and
// validates the result.
func (o *Options) LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	for _, apply := range o.overrides {
		apply(cfg)
	}
	if o.Verbose {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// collect records an override for every play flag the user set.
func (o *Options) collect(cmd *cobra.Command) {
	flags := cmd.Flags()
	set := func(name string, apply func(*config.Config)) {
		if flags.Changed(name) {
			o.overrides = append(o.overrides, apply)
		}
	}
	set("device", func(c *config.Config) { c.Audio.OutputDevice = o.device })
	set("frames-per-buffer", func(c *config.Config) { c.Audio.FramesPerBuffer = o.framesPerBuffer })
	set("low-latency", func(c *config.Config) { c.Audio.LowLatency = o.lowLatency })
	set("headless", func(c *config.Config) { c.Audio.Headless = o.headless })
	set("volume", func(c *config.Config) { c.Audio.Volume = o.volume })
	set("fps", func(c *config.Config) { c.Render.TargetFPS = o.fps })
	set("ws-addr", func(c *config.Config) { c.Transport.WSAddr = o.wsAddr })
	set("no-ws", func(c *config.Config) { c.Transport.WSEnabled = !o.noWS })
	set("udp", func(c *config.Config) {
		c.Transport.UDPEnabled = true
		c.Transport.UDPTargetAddress = o.udpTarget
	})
	set("udp-interval", func(c *config.Config) { c.Transport.UDPSendInterval = o.udpInterval })
	set("output-dir", func(c *config.Config) { c.Export.OutputDir = o.outputDir })
	set("clip-seconds", func(c *config.Config) { c.Export.ClipSeconds = o.clipSeconds })
	set("controls", func(c *config.Config) { c.Render.Controls = o.controlsFile })
	set("seed", func(c *config.Config) { c.Render.Seed = o.seed })
	set("randomize", func(c *config.Config) { c.Render.RandomizeOnLoad = o.randomize })
}

// ParseArgs parses args (without the program name) into Options.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "C", "",
		"Config file (default "+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Play command
	playCmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a WAV or MP3 file and stream its visual parameters",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandPlay
			options.File = args[0]
			options.collect(cmd)
		},
	}
	flags := playCmd.Flags()

	// Playback
	flags.IntVarP(&options.device, "device", "d", config.DefaultOutputDevice,
		"Output device ID. Use the 'list' command to see available devices.")
	flags.IntVarP(&options.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per buffer, also the analysis block size")
	flags.BoolVarP(&options.lowLatency, "low-latency", "l", false,
		"Use the device's low latency setting")
	flags.BoolVar(&options.headless, "headless", false,
		"Drive analysis from a clock instead of an audio device")
	flags.Float64Var(&options.volume, "volume", config.DefaultVolume,
		"Playback volume in [0, 1]")

	// Rendering
	flags.IntVar(&options.fps, "fps", config.DefaultTargetFPS,
		"Frames per second sent to renderers")
	flags.StringVar(&options.controlsFile, "controls", "",
		"YAML file with initial control values")
	flags.Int64Var(&options.seed, "seed", 0,
		"Seed for control randomization (0 for time based)")
	flags.BoolVar(&options.randomize, "randomize", false,
		"Randomize the controls when the track loads")

	// Transports
	flags.StringVar(&options.wsAddr, "ws-addr", config.DefaultWSAddr,
		"WebSocket listen address")
	flags.BoolVar(&options.noWS, "no-ws", false,
		"Disable the WebSocket server")
	flags.StringVar(&options.udpTarget, "udp", config.DefaultUDPTargetAddress,
		"Send uniform packets over UDP to this address")
	flags.DurationVar(&options.udpInterval, "udp-interval", config.DefaultUDPSendInterval,
		"Interval between UDP packets")

	// Export
	flags.StringVarP(&options.outputDir, "output-dir", "o", config.DefaultExportDir,
		"Directory for snapshots, plots and clips")
	flags.Float64Var(&options.clipSeconds, "clip-seconds", config.DefaultClipSeconds,
		"Default clip length in seconds")

	flags.BoolVar(&options.NoTUI, "no-tui", false,
		"Log to the terminal instead of showing the monitor")
	rootCmd.AddCommand(playCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	listCmd.Flags().BoolVar(&options.ListTUI, "tui", false, "Browse devices interactively")
	rootCmd.AddCommand(listCmd)

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
		},
	})

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
