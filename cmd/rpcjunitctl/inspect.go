package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/robotomize/go-rpcjunit/internal/junit"
)

var inspectCmd = &cobra.Command{
	Use:          "inspect <report.xml>",
	Short:        "print the suite and test case properties of a junit report",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := junit.DecodeFile(args[0])
		if err != nil {
			return fmt.Errorf("junit.DecodeFile: %w", err)
		}

		suiteTable := table.NewWriter()
		suiteTable.SetOutputMirror(cmd.OutOrStdout())
		suiteTable.SetStyle(table.StyleRounded)
		suiteTable.SetTitle(fmt.Sprintf("%s: %d tests, %d failures, %d errors, %d skipped", suite.Name, suite.Tests, suite.Failures, suite.Errors, suite.Skips))
		suiteTable.AppendHeader(table.Row{"PROPERTY", "VALUE"})
		for _, p := range suite.Properties {
			suiteTable.AppendRow(table.Row{p.Name, p.Value})
		}
		suiteTable.Render()

		caseTable := table.NewWriter()
		caseTable.SetOutputMirror(cmd.OutOrStdout())
		caseTable.SetStyle(table.StyleRounded)
		caseTable.SetColumnConfigs(
			[]table.ColumnConfig{
				{Number: 1, AutoMerge: true},
				{Number: 2, AutoMerge: true},
			},
		)
		caseTable.AppendHeader(table.Row{"CASE", "OUTCOME", "PROPERTY", "VALUE"})
		for _, tc := range suite.TestCases {
			name := tc.Name
			if tc.ClassName != "" {
				name = tc.ClassName + "." + tc.Name
			}

			if len(tc.Properties) == 0 {
				caseTable.AppendRow(table.Row{name, outcome(tc), "", ""})
				continue
			}

			for _, p := range tc.Properties {
				caseTable.AppendRow(table.Row{name, outcome(tc), p.Name, p.Value})
			}
			caseTable.AppendSeparator()
		}
		caseTable.Render()

		return nil
	},
}

func outcome(tc *junit.TestCase) string {
	switch {
	case tc.Error != nil:
		return "error"
	case tc.Failure != nil:
		return "fail"
	case tc.Skipped != nil:
		return "skip"
	default:
		return "pass"
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
