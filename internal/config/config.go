// Package config parses the command line and, optionally, a YAML file
// layered underneath it, into a single settled Config value (spec.md
// §6.2).
//
// Grounded on _examples/doismellburning-samoyed/src/appserver.go's use
// of spf13/pflag (StringP/IntP/BoolP, a custom pflag.Usage, os.Exit on
// --help); the YAML layer is new (spec.md §6.2 is CLI-only in the
// original), added because a persistent config file is a natural
// ambient-stack extension and gopkg.in/yaml.v3 is already in the
// teacher's require block but never imported by any teacher source.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/acerion/cwdaemon-go/internal/device/serial"
	"github.com/acerion/cwdaemon-go/internal/logging"
	"github.com/acerion/cwdaemon-go/internal/params"
)

// Version is injected at build time (-ldflags), matching -V|--version.
var Version = "dev"

// Config is the settled set of startup options (spec.md §6.2).
type Config struct {
	Port int `yaml:"port"`

	Defaults params.Set `yaml:"-"`

	CWDevice string `yaml:"cwdevice"`
	Options  []string `yaml:"options"` // key=value, repeatable (-o)

	NoFork     bool   `yaml:"nofork"`
	Priority   int    `yaml:"priority"`
	Verbosity  string `yaml:"verbosity"`
	LibCWFlags int    `yaml:"libcwflags"`
	DebugFile  string `yaml:"debugfile"`

	Announce     bool   `yaml:"announce"`
	AnnounceName string `yaml:"announcename"`
}

// SerialOptions parses the repeated -o/--options key=value pairs this
// Config carries into serial pin assignments, matching ttys_optparse's
// "key=dtr|rts|none" / "ptt=dtr|rts|none" vocabulary.
func (c Config) SerialOptions() (serial.Options, error) {
	opts := serial.DefaultOptions()
	for _, kv := range c.Options {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return opts, fmt.Errorf("invalid -o option %q, expected key=value", kv)
		}
		pin, err := serial.ParsePin(val)
		if err != nil {
			return opts, fmt.Errorf("invalid -o option %q: %w", kv, err)
		}
		switch key {
		case "key":
			opts.KeyPin = pin
		case "ptt":
			opts.PTTPin = pin
		default:
			return opts, fmt.Errorf("unknown -o option key %q", key)
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// defaultConfig matches the compiled-in defaults of cwdaemon.c (port
// 6789, the params.DefaultSet() parameter values).
func defaultConfig() Config {
	return Config{
		Port:      6789,
		Defaults:  params.DefaultSet(),
		CWDevice:  "null",
		Verbosity: "n",
		DebugFile: "stderr",
	}
}

// Parse builds a Config from args (normally os.Args[1:]): it first loads
// an optional YAML file named by -c|--config, then applies command-line
// flags on top, so flags always win over the file (spec.md §6.2 lists no
// config file, but layering CLI over a file is the conventional
// ordering used throughout the pack's other CLI tools).
//
// Parse itself never calls os.Exit; -h/--help and -V/--version are
// reported via the returned bool flags so the caller (cmd/cwdaemon) can
// print usage/version and exit with status 0, matching spec.md §6.2's
// "Exit 0 on clean exit/version/help".
func Parse(args []string) (cfg Config, showHelp bool, showVersion bool, err error) {
	fs := pflag.NewFlagSet("cwdaemon", pflag.ContinueOnError)

	configPath := fs.StringP("config", "c", "", "YAML config file, layered underneath command-line flags.")
	port := fs.IntP("port", "p", 0, "UDP port to listen on.")
	wpm := fs.IntP("wpm", "s", 0, "Morse speed in words per minute.")
	pttDelayMs := fs.IntP("pttdelay", "t", -1, "PTT turn-on delay in milliseconds (0..50).")
	toneHz := fs.IntP("tone", "T", 0, "Sidetone frequency in Hz.")
	volume := fs.IntP("volume", "v", -1, "Sidetone volume in percent (0..100).")
	weighting := fs.IntP("weighting", "w", 0, "Dit/dah weighting (-50..50).")
	soundSystem := fs.StringP("system", "x", "", "Sound system: n|c|o|a|p|s.")
	cwDevice := fs.StringP("cwdevice", "d", "", "Keying device name (serial path, gpio spec, or \"null\").")
	options := fs.StringArrayP("options", "o", nil, "Device option key=value (repeatable).")
	noFork := fs.BoolP("nofork", "n", false, "Do not detach from the controlling terminal.")
	priority := fs.IntP("priority", "P", 0, "Scheduling niceness (-20..20).")
	increment := fs.CountP("increment-verbosity", "i", "Raise verbosity by one level (stacks: -iii raises three levels).")
	verbosity := fs.StringP("verbosity", "y", "", "Verbosity: n|e|w|i|d.")
	libcwFlags := fs.IntP("libcwflags", "I", 0, "Debug flags passed through to the CW library adapter.")
	debugFile := fs.StringP("debugfile", "f", "", "Debug log destination: stdout|stderr|path.")
	announce := fs.Bool("announce", false, "Advertise the UDP control port over DNS-SD (_cwdaemon._udp).")
	announceName := fs.String("announce-name", "", "Service name to advertise when --announce is given (default \"cwdaemon\").")
	version := fs.BoolP("version", "V", false, "Print version and exit.")
	help := fs.BoolP("help", "h", false, "Print this help and exit.")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "cwdaemon - a UDP-controlled CW keying daemon\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cwdaemon [OPTIONS]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, false, false, err
	}

	if *help {
		return Config{}, true, false, nil
	}
	if *version {
		return Config{}, false, true, nil
	}

	cfg = defaultConfig()
	if *configPath != "" {
		if cfg, err = loadFile(*configPath, cfg); err != nil {
			return Config{}, false, false, err
		}
	}

	if *port != 0 {
		cfg.Port = *port
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return Config{}, false, false, fmt.Errorf("port %d out of range 1024..65535", cfg.Port)
	}

	if *wpm != 0 {
		cfg.Defaults.SpeedWPM = *wpm
	}
	if *pttDelayMs >= 0 {
		cfg.Defaults.PTTDelayUs = *pttDelayMs * 1000
	}
	if *toneHz != 0 {
		cfg.Defaults.ToneHz = *toneHz
	}
	if *volume >= 0 {
		cfg.Defaults.VolumePct = *volume
	}
	if *weighting != 0 {
		cfg.Defaults.WeightingUser = *weighting
	}
	if *soundSystem != "" {
		sound, ok := params.ParseSoundSystem((*soundSystem)[0])
		if !ok {
			return Config{}, false, false, fmt.Errorf("invalid sound system %q", *soundSystem)
		}
		cfg.Defaults.Sound = sound
	}
	if *cwDevice != "" {
		cfg.CWDevice = *cwDevice
	}
	if len(*options) > 0 {
		cfg.Options = *options
	}
	if *noFork {
		cfg.NoFork = true
	}
	if *priority != 0 {
		cfg.Priority = *priority
	}
	if cfg.Priority < -20 || cfg.Priority > 20 {
		return Config{}, false, false, fmt.Errorf("priority %d out of range -20..20", cfg.Priority)
	}
	if *verbosity != "" {
		cfg.Verbosity = *verbosity
	}
	for i := 0; i < *increment; i++ {
		v, err := logging.ParseVerbosity(cfg.Verbosity)
		if err != nil {
			v = logging.VerbosityNone
		}
		cfg.Verbosity = verbosityLetter(v.Bump())
	}
	if *libcwFlags != 0 {
		cfg.LibCWFlags = *libcwFlags
	}
	if *debugFile != "" {
		cfg.DebugFile = *debugFile
	}
	if *announce {
		cfg.Announce = true
	}
	if *announceName != "" {
		cfg.AnnounceName = *announceName
	}

	return cfg, false, false, nil
}

func loadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return base, nil
}

func verbosityLetter(v logging.Verbosity) string {
	switch v {
	case logging.VerbosityError:
		return "e"
	case logging.VerbosityWarn:
		return "w"
	case logging.VerbosityInfo:
		return "i"
	case logging.VerbosityDebug:
		return "d"
	default:
		return "n"
	}
}
