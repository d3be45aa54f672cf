package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robotomize/go-rpcjunit/internal/schema"
)

var (
	BuildName = "rpcjunitctl"
	BuildTag  string
	Revision  string
)

var versionCmd = &cobra.Command{
	Use:          "version",
	Short:        "print the build version and the bundled report schemas",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version())
		return err
	},
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if BuildTag == "" {
			BuildTag = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && Revision == "" && len(s.Value) >= 7 {
				Revision = s.Value[:7]
			}
		}
	}

	rootCmd.AddCommand(versionCmd)
}

func version() string {
	v := fmt.Sprintf("%s version %s", BuildName, strings.TrimPrefix(BuildTag, "v"))
	if Revision != "" {
		v += " (" + Revision + ")"
	}

	return fmt.Sprintf(
		"%s %s/%s, schemas: %s", v, runtime.GOOS, runtime.GOARCH, strings.Join(schema.Profiles(), ", "),
	)
}
