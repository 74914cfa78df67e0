package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/simcheck/examples/trafficlight"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect property files.",
}

var configCheckCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Check that property files can be used by the run command.",
	Long: "`config check` reads the given property files the way `run` does, " +
		"reports values that cannot be parsed, and lists properties that " +
		"nothing reads.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(args)
		if err != nil {
			return err
		}

		if _, err := c.Settings(); err != nil {
			return err
		}

		if _, err := trafficlight.ConfigFrom(c); err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		unrecognised := c.UnrecognisedProperties()
		if len(unrecognised) == 0 {
			fmt.Fprintf(out, "%d properties, all recognised\n", len(c.Keys()))
			return nil
		}

		fmt.Fprintf(out, "%d of %d properties are not recognised:\n",
			len(unrecognised), len(c.Keys()))
		for _, key := range unrecognised {
			fmt.Fprintf(out, "  %s\n", key)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
}
