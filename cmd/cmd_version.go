package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const appName = "docorm"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and build details",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the name, version and build information
func BuildDetails() string {
	v := version
	if v == "" {
		v = "not-set"
	}
	c := commit
	if c == "" {
		c = "not-set"
	}
	d := date
	if d == "" {
		d = "not-set"
	}

	title := cases.Title(language.English).String(appName)

	return fmt.Sprintf(`%s %s
For documentation, visit https://github.com/dosco/docorm

Commit SHA-1          : %s
Commit timestamp     : %s
Go version           : %s`, title, v, c, d, runtime.Version())
}
