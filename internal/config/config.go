package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".genomeflow.yml"

// Config captures CLI options sourced from config files, environment or flags.
type Config struct {
	Mode     string `yaml:"mode"`
	Output   string `yaml:"output"`
	Threads  int    `yaml:"threads"`
	MemoryGB int    `yaml:"memory_gb"`
	Sample   string `yaml:"sample"`
	Format   string `yaml:"format"`

	Report   ReportConfig          `yaml:"report"`
	Log      LogConfig             `yaml:"log"`
	QC       QCConfig              `yaml:"qc"`
	Assembly AssemblyConfig        `yaml:"assembly"`
	Tools    map[string]ToolConfig `yaml:"tools"`
	Warn     WarnConfig            `yaml:"warn"`
	Publish  PublishConfig         `yaml:"publish"`
}

// ReportConfig controls Markdown report generation.
type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	File    string `yaml:"file"`
}

// LogConfig controls console verbosity and the execution log.
type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QCConfig tunes the quality-control stage.
type QCConfig struct {
	Aggregate        bool          `yaml:"aggregate"`
	Timeout          time.Duration `yaml:"timeout"`
	AggregateTimeout time.Duration `yaml:"aggregate_timeout"`
	ExtraArgs        []string      `yaml:"extra_args"`
}

// AssemblyConfig tunes the assembly stage.
type AssemblyConfig struct {
	Mode         string        `yaml:"mode"`
	Careful      bool          `yaml:"careful"`
	Quast        bool          `yaml:"quast"`
	Reference    string        `yaml:"reference"`
	Timeout      time.Duration `yaml:"timeout"`
	QuastTimeout time.Duration `yaml:"quast_timeout"`
}

// ToolConfig overrides the executable for a tool and optionally pins its version.
type ToolConfig struct {
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	VersionMismatch bool `yaml:"version_mismatch"`
	Resources       bool `yaml:"resources"`
}

// PublishConfig selects the S3 destination for run artifacts.
type PublishConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Enabled reports whether artifacts should be uploaded.
func (p PublishConfig) Enabled() bool {
	return strings.TrimSpace(p.Bucket) != ""
}

const (
	ModeQC       = "qc"
	ModeAssembly = "assembly"
	ModeFull     = "full"

	AssemblyIsolate = "isolate"
	AssemblyMeta    = "meta"
	AssemblyRNA     = "rna"

	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	EnvLogFile  = "GENOMEFLOW_LOG_FILE"
	EnvLogLevel = "GENOMEFLOW_LOG_LEVEL"
)

// Default returns the baseline configuration used when no file, environment or flag sets a value.
func Default() Config {
	return Config{
		Mode:     ModeFull,
		Output:   "results",
		Threads:  1,
		MemoryGB: 16,
		Format:   FormatPretty,
		Report: ReportConfig{
			Enabled: true,
			Title:   "Genome Analysis Report",
			File:    "report.md",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		QC: QCConfig{
			Aggregate:        true,
			Timeout:          time.Hour,
			AggregateTimeout: 10 * time.Minute,
		},
		Assembly: AssemblyConfig{
			Mode:         AssemblyIsolate,
			Quast:        true,
			Timeout:      2 * time.Hour,
			QuastTimeout: 30 * time.Minute,
		},
		Warn: WarnConfig{
			VersionMismatch: true,
			Resources:       true,
		},
	}
}

// Load reads .genomeflow.yml from dir when present. Missing files are ignored.
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("stat config %q: %w", path, err)
	}
	return LoadFile(path)
}

// LoadFile reads an explicit configuration file; the file must exist.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := ValidateDocument(data); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}

	// Decoding over the defaults leaves keys the file omits untouched.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the log destination and level from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvLogFile)); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
}

// Tool returns the executable configured for name, or name itself.
func (c Config) Tool(name string) string {
	if t, ok := c.Tools[name]; ok && strings.TrimSpace(t.Path) != "" {
		return t.Path
	}
	return name
}

// PinnedVersion returns the required version configured for name.
func (c Config) PinnedVersion(name string) string {
	return c.Tools[name].Version
}

// ReportPath is the report destination inside the output directory.
func (c Config) ReportPath() string {
	if filepath.IsAbs(c.Report.File) {
		return c.Report.File
	}
	return filepath.Join(c.Output, c.Report.File)
}

// RunsQC reports whether the mode includes quality control.
func (c Config) RunsQC() bool {
	return c.Mode == ModeQC || c.Mode == ModeFull
}

// RunsAssembly reports whether the mode includes assembly.
func (c Config) RunsAssembly() bool {
	return c.Mode == ModeAssembly || c.Mode == ModeFull
}

// Validate checks value ranges and enumerations.
func Validate(cfg Config) error {
	var problems []string
	if !slices.Contains([]string{ModeQC, ModeAssembly, ModeFull}, cfg.Mode) {
		problems = append(problems, fmt.Sprintf("mode must be one of qc, assembly, full (got %q)", cfg.Mode))
	}
	if !slices.Contains([]string{AssemblyIsolate, AssemblyMeta, AssemblyRNA}, cfg.Assembly.Mode) {
		problems = append(problems, fmt.Sprintf("assembly mode must be one of isolate, meta, rna (got %q)", cfg.Assembly.Mode))
	}
	if cfg.Threads < 1 {
		problems = append(problems, fmt.Sprintf("threads must be a positive integer (got %d)", cfg.Threads))
	}
	if cfg.MemoryGB < 1 {
		problems = append(problems, fmt.Sprintf("memory must be at least 1 GB (got %d)", cfg.MemoryGB))
	}
	if strings.TrimSpace(cfg.Output) == "" {
		problems = append(problems, "output directory must not be empty")
	}
	if !slices.Contains([]string{FormatPretty, FormatJSON}, cfg.Format) {
		problems = append(problems, fmt.Sprintf("format must be pretty or json (got %q)", cfg.Format))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.Log.Level)) {
		problems = append(problems, fmt.Sprintf("log level must be debug, info, warn or error (got %q)", cfg.Log.Level))
	}
	if !slices.Contains([]string{"console", "json"}, cfg.Log.Format) {
		problems = append(problems, fmt.Sprintf("log format must be console or json (got %q)", cfg.Log.Format))
	}
	if cfg.Assembly.Careful && cfg.Assembly.Mode != AssemblyIsolate {
		problems = append(problems, "careful mode is only supported for isolate assemblies")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
