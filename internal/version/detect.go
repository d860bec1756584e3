package version

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bgricker/genomeflow/internal/runner"
)

// DefaultFlag is the conventional version flag used when a tool has no override.
const DefaultFlag = "--version"

// Info captures what is known about an external tool on this system.
type Info struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// VersionKnown reports whether a version token could be extracted.
func (i Info) VersionKnown() bool {
	return i.Available && i.Version != ""
}

// Status renders the availability in a single word or short phrase.
func (i Info) Status() string {
	switch {
	case !i.Available:
		return "not available"
	case i.Version == "":
		return "present, version unknown"
	default:
		return "present"
	}
}

// Prober is the subset of runner.Runner the checker needs.
type Prober interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Checker resolves tools on PATH and probes their versions.
type Checker struct {
	prober  Prober
	timeout time.Duration
	flags   map[string]string
	logger  *zap.Logger
}

// CheckerOption customises a Checker.
type CheckerOption func(*Checker)

// WithTimeout bounds each version probe.
func WithTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) { c.timeout = d }
}

// WithFlag overrides the version flag for a single tool.
func WithFlag(tool, flag string) CheckerOption {
	return func(c *Checker) { c.flags[tool] = flag }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) CheckerOption {
	return func(c *Checker) { c.logger = l }
}

// NewChecker constructs a Checker backed by prober.
func NewChecker(prober Prober, opts ...CheckerOption) *Checker {
	c := &Checker{
		prober:  prober,
		timeout: 10 * time.Second,
		flags:   map[string]string{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether name resolves on PATH and, if so, its version. A probe
// that fails or produces unrecognised output yields "present, version unknown"
// rather than an error. Absent tools are never probed.
func (c *Checker) Check(ctx context.Context, name string) Info {
	info := Info{Name: name}
	path, err := c.prober.LookPath(name)
	if err != nil {
		c.logger.Debug("tool not available", zap.String("tool", name))
		return info
	}
	info.Available = true
	info.Path = path

	flag := DefaultFlag
	if f, ok := c.flags[name]; ok {
		flag = f
	}
	res, err := c.prober.Run(ctx, runner.NewCommand(name, flag).WithTimeout(c.timeout))
	if err != nil || res.TimedOut {
		c.logger.Warn("version probe failed", zap.String("tool", name), zap.Error(err), zap.Bool("timed_out", res.TimedOut))
		return info
	}

	// some tools print their version on stderr
	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		out = res.Stderr
	}
	if v, ok := ParseVersion(out); ok {
		info.Version = v
	} else {
		c.logger.Debug("unrecognised version output", zap.String("tool", name), zap.String("output", firstLine(out)))
	}
	return info
}

// CheckAll checks every tool in order.
func (c *Checker) CheckAll(ctx context.Context, names []string) []Info {
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, c.Check(ctx, name))
	}
	return infos
}

var versionRegex = regexp.MustCompile(`(?i)\bv?(\d+(?:\.\d+)+(?:[-+][0-9A-Za-z.]+)?)`)

// ParseVersion extracts a version token from the first non-empty line of
// output, e.g. "FastQC v0.12.1" -> "0.12.1", "SPAdes genome assembler v3.15.5" -> "3.15.5".
func ParseVersion(output string) (string, bool) {
	line := firstLine(output)
	if line == "" {
		return "", false
	}
	match := versionRegex.FindStringSubmatch(line)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

func firstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// CompareMajorMinor compares major.minor portions of two semver-like versions.
// An empty desired version matches anything.
func CompareMajorMinor(desired, actual string) bool {
	if strings.TrimSpace(desired) == "" {
		return true
	}
	d := semverPrefix(desired)
	a := semverPrefix(actual)
	if d == "" || a == "" {
		return false
	}
	return strings.EqualFold(d, a)
}

func semverPrefix(version string) string {
	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) < 2 {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// Missing reports whether err stems from an executable that could not be found.
func Missing(err error) bool {
	return errors.Is(err, runner.ErrNotFound)
}

// MismatchWarning describes a pinned version that the installed tool does not
// satisfy. It returns "" when there is nothing to report.
func MismatchWarning(info Info, required string) string {
	if strings.TrimSpace(required) == "" {
		return ""
	}
	if !info.Available {
		return fmt.Sprintf("%s executable not found; required %s", info.Name, required)
	}
	if !info.VersionKnown() {
		return fmt.Sprintf("unable to detect %s version; required %s", info.Name, required)
	}
	if !CompareMajorMinor(required, info.Version) {
		return fmt.Sprintf("%s version mismatch: required %s but found %s", info.Name, required, info.Version)
	}
	return ""
}
