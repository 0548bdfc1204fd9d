// Package config defines omnisharp-proxy and O configuration.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fhs/9fans-go/plan9/client"
	"github.com/fhs/omnisharp-client/internal/omnisharp/launcher"
	"github.com/fhs/omnisharp-client/internal/omnisharp/server"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// Flags represent a set of command line flags.
type Flags uint

const (
	// ServerFlags include flags that configure the OmniSharp server.
	ServerFlags Flags = 1 << iota

	// ProxyFlags include flags that configure how to connect to proxy server.
	ProxyFlags
)

// Logging levels of the OmniSharp output log.
const (
	LogInformation = "information"
	LogVerbose     = "verbose"
)

// File represents user configuration file for omnisharp-proxy and O.
type File struct {
	// Network and address used for communication between omnisharp-proxy and O.
	ProxyNetwork, ProxyAddress string

	// OmniSharp server command. Empty means OmniSharp from PATH.
	Command []string

	// Run a .exe server through mono.
	UseMono bool

	// "information" or "verbose". Verbose also logs every request.
	LoggingLevel string

	// Seconds to wait for the server to load the projects.
	ProjectLoadTimeout int

	// Number of normal requests sent to the server at once.
	MaxConcurrency int

	// Ask the server to wait for a debugger to attach.
	WaitForDebugger bool

	// Extra arguments appended to the server command line.
	ExtraArgs []string

	// Write the OmniSharp output log to this file instead of stderr.
	// If it's not an absolute path, it'll become relative to the cache directory.
	LogFile string

	// Serve Prometheus metrics on this address (e.g. "localhost:9464").
	MetricsAddress string

	// Seconds between telemetry reports.
	TelemetryInterval int

	// Tell the server about files changed on disk.
	WatchFiles bool

	// Launch target chosen when a workspace has several.
	PreferredTarget string
}

// Config configures omnisharp-proxy and O.
type Config struct {
	File

	// Show current configuration and exit
	ShowConfig bool

	// Print more messages to stderr
	Verbose bool
}

// Default returns the default Config.
func Default() *Config {
	return &Config{
		File: File{
			ProxyNetwork:       "unix",
			ProxyAddress:       filepath.Join(client.Namespace(), "omnisharp-proxy.rpc"),
			LoggingLevel:       LogInformation,
			ProjectLoadTimeout: int(server.DefaultProjectLoadTimeout / time.Second),
			MaxConcurrency:     8,
			TelemetryInterval:  int(server.DefaultTelemetryInterval / time.Second),
			WatchFiles:         true,
		},
	}
}

func userConfigFilename() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "omnisharp-client", "config.toml"), nil
}

// Load loads Config from file system, falling back to a default if it doesn't exist.
func Load() (*Config, error) {
	filename, err := userConfigFilename()
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(filename)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(filename)
}

// LoadFile loads Config from filename. Settings missing from the file
// take their default values.
func LoadFile(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if _, err := toml.Decode(string(b), &cfg.File); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %v", filename)
	}
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) fill() error {
	def := Default()
	if cfg.ProxyNetwork == "" {
		cfg.ProxyNetwork = def.ProxyNetwork
	}
	if cfg.ProxyAddress == "" {
		cfg.ProxyAddress = def.ProxyAddress
	}
	switch cfg.LoggingLevel {
	case "":
		cfg.LoggingLevel = def.LoggingLevel
	case LogInformation, LogVerbose:
	default:
		return errors.Errorf("invalid LoggingLevel %q", cfg.LoggingLevel)
	}
	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return err
		}
		cacheDir = filepath.Join(cacheDir, "omnisharp-client")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return err
		}
		cfg.LogFile = filepath.Join(cacheDir, cfg.LogFile)
	}
	return nil
}

// Write writes Config to writer w.
func Write(w io.Writer, cfg *Config) error {
	filename, err := userConfigFilename()
	if err == nil {
		fmt.Fprintf(w, "# Configuration file location: %v\n\n", filename)
	} else {
		fmt.Fprintf(w, "# Could not find configuration file location: %v\n\n", err)
	}
	return toml.NewEncoder(w).Encode(cfg.File)
}

// ParseFlags parses command line flags and updates Config.
func (cfg *Config) ParseFlags(flags Flags, f *flag.FlagSet, arguments []string) error {
	var command string

	f.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose output")
	f.BoolVar(&cfg.ShowConfig, "showconfig", false, "show configuration values and exit")

	if flags&ProxyFlags != 0 {
		f.StringVar(&cfg.ProxyNetwork, "proxy.net", cfg.ProxyNetwork,
			"network used for communication between omnisharp-proxy and O")
		f.StringVar(&cfg.ProxyAddress, "proxy.addr", cfg.ProxyAddress,
			"address used for communication between omnisharp-proxy and O")
	}
	if flags&ServerFlags != 0 {
		f.StringVar(&command, "cmd", "", "OmniSharp server command, split like a shell would (e.g. 'mono \"/opt/omnisharp/OmniSharp.exe\"')")
		f.BoolVar(&cfg.UseMono, "mono", cfg.UseMono, "run a .exe server through mono")
		f.StringVar(&cfg.LoggingLevel, "loglevel", cfg.LoggingLevel, "OmniSharp output log level: information or verbose")
		f.IntVar(&cfg.ProjectLoadTimeout, "timeout", cfg.ProjectLoadTimeout, "seconds to wait for the server to load projects")
		f.IntVar(&cfg.MaxConcurrency, "concurrency", cfg.MaxConcurrency, "number of normal requests sent to the server at once")
		f.BoolVar(&cfg.WaitForDebugger, "debug", cfg.WaitForDebugger, "make the server wait for a debugger to attach")
		f.StringVar(&cfg.LogFile, "log", cfg.LogFile, "write the OmniSharp output log to this file")
		f.StringVar(&cfg.MetricsAddress, "metrics", cfg.MetricsAddress, "serve Prometheus metrics on this address")
		f.BoolVar(&cfg.WatchFiles, "watch", cfg.WatchFiles, "send file system changes to the server")
		f.StringVar(&cfg.PreferredTarget, "target", cfg.PreferredTarget, "launch target to use when there are several")
	}
	if err := f.Parse(arguments); err != nil {
		return err
	}

	if command != "" {
		args, err := shellquote.Split(command)
		if err != nil {
			return errors.Wrap(err, "invalid -cmd")
		}
		cfg.Command = args
	}
	switch cfg.LoggingLevel {
	case LogInformation, LogVerbose:
	default:
		return errors.Errorf("invalid log level %q", cfg.LoggingLevel)
	}
	return nil
}

// ServerOptions returns the server options described by cfg.
func (cfg *Config) ServerOptions() server.Options {
	return server.Options{
		Options: launcher.Options{
			Command:         cfg.Command,
			UseMono:         cfg.UseMono,
			Verbose:         cfg.LoggingLevel == LogVerbose,
			WaitForDebugger: cfg.WaitForDebugger,
			ExtraArgs:       cfg.ExtraArgs,
		},
		ProjectLoadTimeout: time.Duration(cfg.ProjectLoadTimeout) * time.Second,
		Concurrency:        cfg.MaxConcurrency,
		TelemetryInterval:  time.Duration(cfg.TelemetryInterval) * time.Second,
	}
}
