package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the active configuration as YAML",
		Long: `Print the configuration after inheritance, environment overrides and
defaults have been applied.`,
		RunE: cmdConfigDump,
	}
	dumpCmd.Flags().Bool("raw", false, "Print the settings as loaded instead of the decoded config")
	c.AddCommand(dumpCmd)

	return c
}

func cmdConfigDump(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	var v any = conf
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		v = conf.Settings()
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
