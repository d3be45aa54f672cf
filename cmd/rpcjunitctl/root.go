package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-rpcjunit/internal/augment"
	"github.com/robotomize/go-rpcjunit/internal/config"
	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/exporter"
	"github.com/robotomize/go-rpcjunit/internal/fs"
	"github.com/robotomize/go-rpcjunit/internal/golist"
	"github.com/robotomize/go-rpcjunit/internal/gotest"
	"github.com/robotomize/go-rpcjunit/internal/logging"
	"github.com/robotomize/go-rpcjunit/internal/parser"
	"github.com/robotomize/go-rpcjunit/internal/schema"
	"github.com/robotomize/go-rpcjunit/internal/slice"
)

var (
	verboseFlag           bool
	junitXMLFlag          string
	configFlag            string
	testRunnerFlag        string
	envProfileFlag        string
	envFileFlag           []string
	suiteNameFlag         string
	marksFlag             []string
	goBuildTagsFlag       string
	forwardGoTestExitCode bool
	forwardGoTestLog      bool
	noSourceFlag          bool
	silentOutput          bool
)

// exit is replaced in tests.
var exit = os.Exit

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&verboseFlag,
		"verbose",
		"v",
		false,
		"verbose",
	)
	rootCmd.PersistentFlags().StringVarP(
		&configFlag,
		"config",
		"",
		"",
		"path to the config file, "+config.FileName+" in the working directory by default",
	)
	rootCmd.PersistentFlags().StringVarP(
		&envProfileFlag,
		"env-profile",
		"",
		envsnap.Release.Name,
		"environment variables recorded as suite properties: release or ci",
	)
	rootCmd.Flags().StringVarP(
		&junitXMLFlag,
		"junitxml",
		"o",
		"",
		"write the junit report to a file: -o reports/junit.xml",
	)
	rootCmd.Flags().StringVarP(
		&testRunnerFlag,
		"test-runner",
		"",
		config.RunnerMolecule,
		"runner recorded as the test-runner suite property: "+strings.Join(config.Runners, ", "),
	)
	rootCmd.Flags().StringSliceVarP(
		&envFileFlag,
		"env-file",
		"",
		nil,
		"read unset environment variables from dotenv files: --env-file build.env,job.env",
	)
	rootCmd.Flags().StringVarP(
		&suiteNameFlag,
		"suite-name",
		"",
		"gotest",
		"name of the testsuite element",
	)
	rootCmd.Flags().StringSliceVarP(
		&marksFlag,
		"marks",
		"",
		nil,
		"marks recorded as test case properties: --marks test_id,jira",
	)
	rootCmd.Flags().StringVarP(
		&goBuildTagsFlag,
		"gotags",
		"",
		"",
		"pass custom build tags: --gotags integration,fixture,linux",
	)
	rootCmd.Flags().BoolVarP(
		&forwardGoTestExitCode,
		"forward-exit",
		"e",
		false,
		"forward the origin go test exit code",
	)
	rootCmd.Flags().BoolVarP(
		&forwardGoTestLog,
		"forward-log",
		"l",
		false,
		"output the origin go test",
	)
	rootCmd.Flags().BoolVarP(
		&noSourceFlag,
		"no-source",
		"",
		false,
		"do not read marks from test source files",
	)
	rootCmd.Flags().BoolVarP(
		&silentOutput,
		"silent",
		"s",
		false,
		"do not print the junit report to stdout",
	)
}

var rootCmd = &cobra.Command{
	Use:          "rpcjunitctl",
	Long:         "Convert go test -json output to a junit report carrying build and test case properties",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		profile, err := cfg.Profile()
		if err != nil {
			return fmt.Errorf("config Profile: %w", err)
		}

		lookup := envsnap.LookupFunc(os.LookupEnv)
		if len(cfg.EnvFiles) > 0 {
			if lookup, err = envsnap.ReadEnvFiles(cfg.EnvFiles...); err != nil {
				return fmt.Errorf("envsnap.ReadEnvFiles: %w", err)
			}
		}

		snap := envsnap.Capture(profile, lookup).With(schema.RunnerProperty, cfg.TestRunner)

		opts := []exporter.Option{
			exporter.WithSnapshot(snap),
			exporter.WithSuiteName(cfg.SuiteName),
			exporter.WithAugmentOptions(augment.WithMarks(cfg.Marks...)),
		}

		if cfg.JUnitXML == "" && silentOutput {
			logging.Info("cli", "no report output requested, properties are not recorded")
			opts = append(opts, exporter.WithoutReport())
		}

		var fileParser exporter.FileParser
		if !noSourceFlag {
			if fileParser, err = sourceParser(); err != nil {
				return err
			}
		}

		pkgReader := gotest.NewReader(cmd.InOrStdin())
		reportExporter := exporter.New(fileParser, pkgReader, opts...)
		if err := reportExporter.Read(ctx); err != nil {
			return fmt.Errorf("exporter Read: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\nTrying to generate a junit report\n")
		report, err := reportExporter.Export()
		if err != nil {
			return fmt.Errorf("exporter Export: %w", err)
		}

		if verboseFlag && report.Err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Read go test output log: %s\n", report.Err.Error())
		}

		if forwardGoTestLog {
			if _, err := io.Copy(cmd.ErrOrStderr(), report.OutputLog); err != nil {
				return fmt.Errorf("io.Copy: %w", err)
			}
		}

		var outOpts []exporter.WriterOption
		if cfg.JUnitXML != "" {
			outOpts = append(outOpts, exporter.WriteToFile(cfg.JUnitXML))
		}
		if !silentOutput {
			outOpts = append(outOpts, exporter.WriteReportTo(cmd.OutOrStdout()))
		}

		if err := exporter.NewWriter(outOpts...).WriteReport(ctx, report.Suite); err != nil {
			return fmt.Errorf("exporter.NewWriter WriteReport: %w", err)
		}

		if cfg.JUnitXML != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.JUnitXML)
		}

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Conversion completed successfully\n")

		if forwardGoTestExitCode && report.Failed {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "One or more go tests failed. exiting with error 1\n")
			exit(1)
		}

		return nil
	},
}

// resolveConfig merges defaults, the config file and the flags that were set
// explicitly, then initializes logging.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return cfg, fmt.Errorf("config.Load: %w", err)
	}

	flags := cmd.Flags()
	values := config.FlagValues{
		TestRunner: config.StringFlag{Value: testRunnerFlag, Set: flags.Changed("test-runner")},
		EnvProfile: config.StringFlag{Value: envProfileFlag, Set: flags.Changed("env-profile")},
		SuiteName:  config.StringFlag{Value: suiteNameFlag, Set: flags.Changed("suite-name")},
		JUnitXML:   config.StringFlag{Value: junitXMLFlag, Set: flags.Changed("junitxml")},
	}
	if flags.Changed("env-file") {
		values.EnvFiles = config.SliceFlag{Values: envFileFlag}
	}
	if flags.Changed("marks") {
		values.Marks = config.SliceFlag{Values: marksFlag}
	}
	if verboseFlag {
		values.LogLevel = config.StringFlag{Value: logging.LevelDebug.String(), Set: true}
	}

	config.ApplyFlags(&cfg, values)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.InitForCLI(level, cmd.ErrOrStderr())

	return cfg, nil
}

func sourceParser() (*parser.Parser, error) {
	pwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("os.Getwd: %w", err)
	}

	root, err := fs.New(pwd)
	if err != nil {
		return nil, fmt.Errorf("fs.New: %w", err)
	}

	tags := slice.NonZero(slice.Map(strings.Split(goBuildTagsFlag, ","), strings.TrimSpace))

	return parser.New(golist.NewRetriever(root, tags)), nil
}
