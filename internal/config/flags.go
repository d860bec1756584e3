package config

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Mode.Set {
		cfg.Mode = flags.Mode.Value
	}
	if flags.Output.Set {
		cfg.Output = flags.Output.Value
	}
	if flags.Threads.Set {
		cfg.Threads = flags.Threads.Value
	}
	if flags.Memory.Set {
		cfg.MemoryGB = flags.Memory.Value
	}
	if flags.Sample.Set {
		cfg.Sample = flags.Sample.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.LogFile.Set {
		cfg.Log.File = flags.LogFile.Value
	}
	if flags.LogLevel.Set {
		cfg.Log.Level = flags.LogLevel.Value
	}
	if flags.LogFormat.Set {
		cfg.Log.Format = flags.LogFormat.Value
	}
	if flags.NoReport.Set {
		cfg.Report.Enabled = !flags.NoReport.Value
	}
	if flags.AssemblyMode.Set {
		cfg.Assembly.Mode = flags.AssemblyMode.Value
	}
	if flags.Careful.Set {
		cfg.Assembly.Careful = flags.Careful.Value
	}
	if flags.NoQuast.Set {
		cfg.Assembly.Quast = !flags.NoQuast.Value
	}
	if flags.Reference.Set {
		cfg.Assembly.Reference = flags.Reference.Value
	}
	if flags.NoAggregate.Set {
		cfg.QC.Aggregate = !flags.NoAggregate.Value
	}
	if len(flags.QCArgs.Values) > 0 {
		cfg.QC.ExtraArgs = append([]string{}, flags.QCArgs.Values...)
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Mode      StringFlag
	Output    StringFlag
	Threads   IntFlag
	Memory    IntFlag
	Sample    StringFlag
	Format    StringFlag
	LogFile   StringFlag
	LogLevel  StringFlag
	LogFormat StringFlag
	NoReport  BoolFlag

	AssemblyMode StringFlag
	Careful      BoolFlag
	NoQuast      BoolFlag
	Reference    StringFlag
	NoAggregate  BoolFlag
	QCArgs       SliceFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}
