// odfs is a command line client for onedrivefs filesystems.
//
// Usage:
//
//	odfs [global flags] <command> [command flags] [args]
//
// The filesystem is described by the configuration file (see "odfs init"),
// ONEDRIVEFS_* environment variables, and the global flags, in increasing
// order of precedence. --url accepts a onedrive:// URL instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/config"
	"github.com/marmos91/onedrivefs/pkg/metrics"
	"github.com/marmos91/onedrivefs/pkg/onedrivefs"
	"github.com/marmos91/onedrivefs/pkg/opener"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are accepted before the command name.
type globalFlags struct {
	configPath string
	url        string
}

// newGlobalFlagSet declares the global flags. Flags that mirror configuration
// keys are bound to v so they win over the file and the environment.
func newGlobalFlagSet(v *viper.Viper, g *globalFlags, stderr io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("odfs", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)

	flagSet.StringVarP(&g.configPath, "config", "c", "", "path to the configuration file (default: "+config.GetDefaultConfigPath()+")")
	flagSet.StringVar(&g.url, "url", "", "onedrive:// URL of the filesystem, overrides the drive section")
	flagSet.String("drive", "", "drive backend: graph, memory, s3")
	flagSet.String("root", "", "folder of the drive the filesystem is rooted at")
	flagSet.String("log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	flagSet.String("log-format", "", "log format: text, json")
	flagSet.Bool("metrics", false, "serve Prometheus metrics while the command runs")
	flagSet.String("metrics-listen", "", "address of the /metrics endpoint (default :9090)")

	bindings := map[string]string{
		"drive":          "drive.type",
		"root":           "drive.root",
		"log-level":      "logging.level",
		"log-format":     "logging.format",
		"metrics":        "metrics.enabled",
		"metrics-listen": "metrics.listen",
	}
	for name, key := range bindings {
		_ = v.BindPFlag(key, flagSet.Lookup(name))
	}

	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: odfs [global flags] <command> [args]\n\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-8s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nGlobal flags:\n")
		flagSet.PrintDefaults()
	}
	return flagSet
}

// run parses args, builds the filesystem and runs one command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	v := viper.New()
	var g globalFlags

	flagSet := newGlobalFlagSet(v, &g, stderr)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return pflag.ErrHelp
	}

	name, rest := flagSet.Arg(0), flagSet.Args()[1:]
	i := slices.IndexFunc(commands, func(c command) bool { return c.name == name })
	if i < 0 {
		return fmt.Errorf("unknown command %q (see odfs --help)", name)
	}
	cmd := commands[i]

	cmdFlags := pflag.NewFlagSet("odfs "+cmd.name, pflag.ContinueOnError)
	cmdFlags.SetOutput(stderr)
	cmdFlags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: odfs %s %s\n\n%s\n", cmd.name, cmd.usage, cmd.summary)
		cmdFlags.PrintDefaults()
	}
	var opts commandOptions
	if cmd.flags != nil {
		cmd.flags(cmdFlags, &opts)
	}
	if err := cmdFlags.Parse(rest); err != nil {
		return err
	}
	if n := cmdFlags.NArg(); n < cmd.minArgs || n > cmd.maxArgs {
		cmdFlags.Usage()
		return fmt.Errorf("%s: expected %s", cmd.name, cmd.usage)
	}

	env := &environment{stdin: stdin, stdout: stdout, opts: opts, configPath: g.configPath}

	// init works on the configuration file only
	if cmd.offline {
		return cmd.run(ctx, env, cmdFlags.Args())
	}

	cfg, err := config.LoadWithViper(v, g.configPath)
	if err != nil {
		return err
	}
	if g.url != "" {
		target, err := opener.Parse(g.url)
		if err != nil {
			return err
		}
		target.Apply(cfg)
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	if err := config.ConfigureLogging(&cfg.Logging); err != nil {
		return err
	}
	logger.Debug("Using %s drive rooted at %s", cfg.Drive.Type, cfg.Drive.Root)

	if cfg.Metrics.Enabled {
		stop, err := serveMetrics(ctx, cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		defer stop()
	}

	fsys, cleanup, err := config.CreateFilesystem(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("Failed to close token store: %v", err)
		}
	}()

	env.fs = fsys
	return cmd.run(ctx, env, cmdFlags.Args())
}

// serveMetrics starts the metrics endpoint in the background. The returned
// func stops it.
func serveMetrics(ctx context.Context, listen string) (func(), error) {
	metrics.InitRegistry()

	srv, err := metrics.NewServer(metrics.ServerConfig{Listen: listen})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			logger.Error("%v", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// environment is what a command runs against.
type environment struct {
	fs         *onedrivefs.FS
	stdin      io.Reader
	stdout     io.Writer
	opts       commandOptions
	configPath string
}
