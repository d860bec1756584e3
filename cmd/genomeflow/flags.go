package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bgricker/genomeflow/internal/config"
	"github.com/bgricker/genomeflow/internal/failure"
	"github.com/bgricker/genomeflow/internal/logging"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues
	var err error

	stringFlags := []struct {
		name   string
		target *config.StringFlag
	}{
		{"mode", &values.Mode},
		{"output", &values.Output},
		{"sample", &values.Sample},
		{"format", &values.Format},
		{"log-file", &values.LogFile},
		{"log-level", &values.LogLevel},
		{"log-format", &values.LogFormat},
		{"assembly-mode", &values.AssemblyMode},
		{"reference", &values.Reference},
	}
	for _, f := range stringFlags {
		if *f.target, err = stringFlag(flags, f.name); err != nil {
			return values, err
		}
	}

	if values.Threads, err = intFlag(flags, "threads"); err != nil {
		return values, err
	}
	if values.Memory, err = intFlag(flags, "memory"); err != nil {
		return values, err
	}

	boolFlags := []struct {
		name   string
		target *config.BoolFlag
	}{
		{"no-report", &values.NoReport},
		{"careful", &values.Careful},
		{"no-quast", &values.NoQuast},
		{"no-aggregate", &values.NoAggregate},
	}
	for _, f := range boolFlags {
		if *f.target, err = boolFlag(flags, f.name); err != nil {
			return values, err
		}
	}

	if flags.Changed("fastqc-arg") {
		v, err := flags.GetStringArray("fastqc-arg")
		if err != nil {
			return values, fmt.Errorf("parse --fastqc-arg: %w", err)
		}
		values.QCArgs = config.SliceFlag{Values: append([]string{}, v...)}
	}

	return values, nil
}

func stringFlag(flags *pflag.FlagSet, name string) (config.StringFlag, error) {
	if !flags.Changed(name) {
		return config.StringFlag{}, nil
	}
	v, err := flags.GetString(name)
	if err != nil {
		return config.StringFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.StringFlag{Value: v, Set: true}, nil
}

func intFlag(flags *pflag.FlagSet, name string) (config.IntFlag, error) {
	if !flags.Changed(name) {
		return config.IntFlag{}, nil
	}
	v, err := flags.GetInt(name)
	if err != nil {
		return config.IntFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.IntFlag{Value: v, Set: true}, nil
}

func boolFlag(flags *pflag.FlagSet, name string) (config.BoolFlag, error) {
	if !flags.Changed(name) {
		return config.BoolFlag{}, nil
	}
	v, err := flags.GetBool(name)
	if err != nil {
		return config.BoolFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	return config.BoolFlag{Value: v, Set: true}, nil
}

// loadConfig layers defaults, the config file, the environment and explicit
// flags, then validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, failure.Validation(err, "parse --config")
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return config.Config{}, failure.Environment(wdErr, "determine working directory")
		}
		cfg, err = config.Load(wd)
	}
	if err != nil {
		return cfg, failure.Validation(err, "load configuration")
	}

	config.ApplyEnv(&cfg, os.Getenv)
	values, err := gatherFlags(cmd)
	if err != nil {
		return cfg, failure.Validation(err, "")
	}
	config.ApplyFlags(&cfg, values)

	if err := config.Validate(cfg); err != nil {
		return cfg, failure.Validation(err, "invalid configuration")
	}
	return cfg, nil
}

func newLogger(cfg config.Config, console io.Writer) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Console: console,
	})
	if err != nil {
		return nil, failure.Environment(err, "set up logging")
	}
	return logger, nil
}
