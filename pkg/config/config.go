// Package config reads loader settings from defaults, an optional config
// file, MODLOAD_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackb/modload/pkg/format"
	"github.com/stackb/modload/pkg/loader"
	"github.com/stackb/modload/pkg/progress"
	"github.com/stackb/modload/pkg/resolver"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. MODLOAD_ENTRY_MODE.
	EnvPrefix = "MODLOAD"
	// ConfigName is the base name of the config file searched in the
	// working directory (modload.yaml, modload.toml, modload.json).
	ConfigName = "modload"
)

// Progress output modes.
const (
	ProgressNone = "none"
	ProgressText = "text"
	ProgressJSON = "json"
)

// Config is the decoded configuration.
type Config struct {
	Base                 string           `mapstructure:"base"`
	LogLevel             string           `mapstructure:"log_level"`
	PreserveSymlinks     bool             `mapstructure:"preserve_symlinks"`
	PreserveSymlinksMain bool             `mapstructure:"preserve_symlinks_main"`
	EntryMode            string           `mapstructure:"entry_mode"`
	PackageDir           string           `mapstructure:"package_dir"`
	ManifestName         string           `mapstructure:"manifest_name"`
	Extensions           []string         `mapstructure:"extensions"`
	LegacyPaths          []string         `mapstructure:"legacy_paths"`
	DisableAddons        bool             `mapstructure:"disable_addons"`
	Loader               string           `mapstructure:"loader"`
	Progress             string           `mapstructure:"progress"`
	FormatOverrides      []FormatOverride `mapstructure:"format_overrides"`
}

// FormatOverride is one entry of the format_overrides list.  Entries are
// tried in order.
type FormatOverride struct {
	Pattern string `mapstructure:"pattern"`
	Format  string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:     zerolog.InfoLevel.String(),
		EntryMode:    format.Legacy.String(),
		PackageDir:   resolver.DefaultPackageDir,
		ManifestName: resolver.DefaultManifestName,
		Extensions:   append([]string(nil), resolver.DefaultExtensions...),
		LegacyPaths:  []string{},
		Progress:     ProgressNone,
	}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"base":                   "base",
	"log-level":              "log_level",
	"preserve-symlinks":      "preserve_symlinks",
	"preserve-symlinks-main": "preserve_symlinks_main",
	"entry-mode":             "entry_mode",
	"package-dir":            "package_dir",
	"disable-addons":         "disable_addons",
	"loader":                 "loader",
	"progress":               "progress",
}

// LoadOptions select the sources of Load.
type LoadOptions struct {
	// File is an explicit config file; it must exist.
	File string
	// Dir is searched for modload.{yaml,toml,json} when File is empty.
	Dir string
	// Flags, if set, override file and environment values for the flags
	// that were changed.
	Flags *pflag.FlagSet
}

// Load reads the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("base", defaults.Base)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("preserve_symlinks", defaults.PreserveSymlinks)
	v.SetDefault("preserve_symlinks_main", defaults.PreserveSymlinksMain)
	v.SetDefault("entry_mode", defaults.EntryMode)
	v.SetDefault("package_dir", defaults.PackageDir)
	v.SetDefault("manifest_name", defaults.ManifestName)
	v.SetDefault("extensions", defaults.Extensions)
	v.SetDefault("legacy_paths", defaults.LegacyPaths)
	v.SetDefault("disable_addons", defaults.DisableAddons)
	v.SetDefault("loader", defaults.Loader)
	v.SetDefault("progress", defaults.Progress)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	switch {
	case opts.File != "":
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	case opts.Dir != "":
		v.SetConfigName(ConfigName)
		v.AddConfigPath(opts.Dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}

// Overrides converts FormatOverrides, keeping their order.
func (c *Config) Overrides() (resolver.FormatOverrides, error) {
	var overrides resolver.FormatOverrides
	for _, o := range c.FormatOverrides {
		f, err := format.Parse(o.Format)
		if err != nil {
			return nil, fmt.Errorf("format override %q: %w", o.Pattern, err)
		}
		overrides = append(overrides, resolver.FormatOverride{Pattern: o.Pattern, Format: f})
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	return overrides, nil
}

// ProgressOutput returns the progress sink selected by Progress, writing to
// out.  It is nil for "none".
func (c *Config) ProgressOutput(out io.Writer) (mobyprogress.Output, error) {
	switch strings.ToLower(c.Progress) {
	case "", ProgressNone:
		return nil, nil
	case ProgressText:
		return progress.NewProgressOutput(out), nil
	case ProgressJSON:
		return progress.NewJSONOutput(out), nil
	default:
		return nil, fmt.Errorf("unknown progress mode %q (want none, text or json)", c.Progress)
	}
}

// LoaderOptions converts the configuration into loader options.  Progress
// updates are written to progressOut.
func (c *Config) LoaderOptions(logger zerolog.Logger, progressOut io.Writer) (loader.Options, error) {
	var entryMode format.Format
	if c.EntryMode != "" {
		f, err := format.Parse(c.EntryMode)
		if err != nil {
			return loader.Options{}, fmt.Errorf("entry mode: %w", err)
		}
		entryMode = f
	}
	overrides, err := c.Overrides()
	if err != nil {
		return loader.Options{}, err
	}
	out, err := c.ProgressOutput(progressOut)
	if err != nil {
		return loader.Options{}, err
	}
	return loader.Options{
		Base:                 c.Base,
		PreserveSymlinks:     c.PreserveSymlinks,
		PreserveSymlinksMain: c.PreserveSymlinksMain,
		EntryMode:            entryMode,
		PackageDir:           c.PackageDir,
		ManifestName:         c.ManifestName,
		Extensions:           c.Extensions,
		LegacyPaths:          c.LegacyPaths,
		DisableAddons:        c.DisableAddons,
		HooksModule:          c.Loader,
		FormatOverrides:      overrides,
		Logger:               logger,
		Progress:             out,
	}, nil
}
