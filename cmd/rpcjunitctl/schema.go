package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-rpcjunit/internal/config"
	"github.com/robotomize/go-rpcjunit/internal/envsnap"
	"github.com/robotomize/go-rpcjunit/internal/junit"
	"github.com/robotomize/go-rpcjunit/internal/schema"
)

var errReportInvalid = errors.New("report does not conform to the schema")

var schemaCmd = &cobra.Command{
	Use:          "schema",
	Short:        "print the XSD of the selected environment profile",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := selectedProfile(cmd)
		if err != nil {
			return err
		}

		xsd, err := schema.XSD(profile.Name)
		if err != nil {
			return fmt.Errorf("schema.XSD: %w", err)
		}

		if _, err := io.Copy(cmd.OutOrStdout(), xsd); err != nil {
			return fmt.Errorf("io.Copy: %w", err)
		}

		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:          "validate <report.xml>",
	Short:        "check a junit report against the property contract",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := selectedProfile(cmd)
		if err != nil {
			return err
		}

		suite, err := junit.DecodeFile(args[0])
		if err != nil {
			return fmt.Errorf("junit.DecodeFile: %w", err)
		}

		res := schema.Validate(suite, schema.DefaultRules(profile))
		if res.Valid {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s report\n", args[0], profile.Name)
			return nil
		}

		for _, v := range res.Violations {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), v.String())
		}

		return fmt.Errorf("%s: %d violations: %w", args[0], len(res.Violations), errReportInvalid)
	},
}

// selectedProfile resolves the environment profile from the config file and
// the --env-profile flag.
func selectedProfile(cmd *cobra.Command) (envsnap.Profile, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return envsnap.Profile{}, fmt.Errorf("config.Load: %w", err)
	}

	config.ApplyFlags(
		&cfg, config.FlagValues{
			EnvProfile: config.StringFlag{Value: envProfileFlag, Set: cmd.Flags().Changed("env-profile")},
		},
	)

	profile, err := cfg.Profile()
	if err != nil {
		return envsnap.Profile{}, fmt.Errorf("config Profile: %w", err)
	}

	return profile, nil
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(validateCmd)
}
