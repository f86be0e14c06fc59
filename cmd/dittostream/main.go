// dittostream is a command line client for protocol bindings declared in a
// dittostream configuration file. Every command goes through the same hook
// surface a host runtime would use, so failures are reported as the
// warnings a host would raise.
//
// Usage:
//
//	dittostream [--config FILE] [--log-level LEVEL] [--metrics] <command> [args]
//
// Commands:
//
//	init [--force]          write a default configuration file
//	protocols               list the configured protocols
//	cat URI                 print a file
//	put URI                 write stdin to a file, replacing it
//	append URI              append stdin to a file
//	ls [-l] URI             list a directory
//	stat URI                print the stat record of a path
//	mv FROM TO              rename a file or directory
//	mkdir [-p] URI          create a directory
//	rmdir [-r] URI          remove a directory
//	rm URI                  remove a file
//	touch URI               create a file or update its timestamp
//	chmod MODE URI          set visibility from octal permission bits
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/config"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logLevel string
	var showMetrics bool

	flagSet := pflag.NewFlagSet("dittostream", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $XDG_CONFIG_HOME/dittostream/config.yaml)")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")
	flagSet.BoolVar(&showMetrics, "metrics", false, "print backend call metrics to stderr when the command ends")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return errors.New("no command given")
	}

	name, args := args[0], args[1:]

	// init runs before any configuration exists
	if name == "init" {
		return runInit(configPath, args)
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if showMetrics {
		cfg.Metrics.Enabled = true
	}
	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.UnregisterAll(); err != nil {
			logger.Warn("failed to close bindings: %v", err)
		}
	}()

	env := newEnv(reg, lock.NewRelay(cfg.Locking.Directory), os.Stdin, os.Stdout, os.Stderr)
	err = cmd(ctx, env, args)

	if showMetrics {
		if werr := metrics.WriteSummary(os.Stderr); werr != nil {
			logger.Warn("failed to print metrics: %v", werr)
		}
	}
	return err
}

func runInit(configPath string, args []string) error {
	var force bool

	flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
	flagSet.BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if configPath == "" {
		path, err := config.InitConfig(force)
		if err != nil {
			return err
		}
		configPath = path
	} else if err := config.InitConfigToPath(configPath, force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", configPath)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: dittostream [flags] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands: init, protocols, cat, put, append, ls, stat, mv, mkdir, rmdir, rm, touch, chmod\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flagSet.PrintDefaults()
}
