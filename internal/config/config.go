// Package config resolves the settings of a run from defaults, an optional
// YAML file and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/logging"
	"github.com/robotomize/go-rpcjunit/internal/mark"
	"github.com/robotomize/go-rpcjunit/internal/slice"
)

// FileName is looked up in the working directory when no path is given.
const FileName = ".rpcjunit.yml"

const (
	RunnerMolecule = "molecule"
	RunnerPytest   = "pytest"
	RunnerGotest   = "gotest"
)

// Runners lists the accepted test-runner values.
var Runners = []string{RunnerMolecule, RunnerPytest, RunnerGotest}

var (
	ErrInvalidRunner = errors.New("invalid test-runner")
	ErrInvalidMark   = errors.New("invalid mark")
)

// Config captures run options sourced from the config file or flags.
type Config struct {
	TestRunner string   `yaml:"test-runner"`
	EnvProfile string   `yaml:"env-profile"`
	EnvFiles   []string `yaml:"env-files"`
	SuiteName  string   `yaml:"suite-name"`
	Marks      []string `yaml:"marks"`
	JUnitXML   string   `yaml:"junitxml"`
	LogLevel   string   `yaml:"log-level"`
}

// Default returns the configuration used when neither flags nor a file set a value.
func Default() Config {
	return Config{
		TestRunner: RunnerMolecule,
		EnvProfile: envsnap.Release.Name,
		SuiteName:  RunnerGotest,
		Marks:      append([]string{}, mark.Known...),
		LogLevel:   "warn",
	}
}

// Load reads the config file at pth. An empty pth means FileName in the
// working directory, whose absence is not an error.
func Load(pth string) (Config, error) {
	cfg := Default()

	explicit := pth != ""
	if !explicit {
		pth = filepath.Join(".", FileName)
	}

	data, err := os.ReadFile(pth)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Debug("config", "no %s found, using defaults", pth)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", pth, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", pth, err)
	}

	logging.Debug("config", "loaded configuration from %s", pth)

	return merge(cfg, fileCfg), nil
}

func merge(base, override Config) Config {
	out := base

	if override.TestRunner != "" {
		out.TestRunner = override.TestRunner
	}
	if override.EnvProfile != "" {
		out.EnvProfile = override.EnvProfile
	}
	if len(override.EnvFiles) > 0 {
		out.EnvFiles = append([]string{}, override.EnvFiles...)
	}
	if override.SuiteName != "" {
		out.SuiteName = override.SuiteName
	}
	if len(override.Marks) > 0 {
		out.Marks = append([]string{}, override.Marks...)
	}
	if override.JUnitXML != "" {
		out.JUnitXML = override.JUnitXML
	}
	if override.LogLevel != "" {
		out.LogLevel = override.LogLevel
	}

	return out
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.TestRunner.Set {
		cfg.TestRunner = flags.TestRunner.Value
	}
	if flags.EnvProfile.Set {
		cfg.EnvProfile = flags.EnvProfile.Value
	}
	if len(flags.EnvFiles.Values) > 0 {
		cfg.EnvFiles = append([]string{}, flags.EnvFiles.Values...)
	}
	if flags.SuiteName.Set {
		cfg.SuiteName = flags.SuiteName.Value
	}
	if len(flags.Marks.Values) > 0 {
		cfg.Marks = append([]string{}, flags.Marks.Values...)
	}
	if flags.JUnitXML.Set {
		cfg.JUnitXML = flags.JUnitXML.Value
	}
	if flags.LogLevel.Set {
		cfg.LogLevel = flags.LogLevel.Value
	}
}

// Validate reports the first setting that would make the run meaningless.
func (c Config) Validate() error {
	if !slice.Contains(Runners, c.TestRunner) {
		return fmt.Errorf("the value %s is not a valid value for test-runner: %w", c.TestRunner, ErrInvalidRunner)
	}

	if _, err := envsnap.ProfileByName(c.EnvProfile); err != nil {
		return fmt.Errorf("env-profile: %w", err)
	}

	for _, m := range c.Marks {
		if !mark.IsKnown(m) {
			return fmt.Errorf("the value %s is not a valid value for marks (%s): %w", m, strings.Join(mark.Known, ", "), ErrInvalidMark)
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	return nil
}

// Profile returns the environment profile selected by c.
func (c Config) Profile() (envsnap.Profile, error) {
	return envsnap.ProfileByName(c.EnvProfile)
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	TestRunner StringFlag
	EnvProfile StringFlag
	EnvFiles   SliceFlag
	SuiteName  StringFlag
	Marks      SliceFlag
	JUnitXML   StringFlag
	LogLevel   StringFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}
