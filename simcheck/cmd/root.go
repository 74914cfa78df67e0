// Package cmd provides the command-line interface of simcheck.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "simcheck",
	Short: "simcheck runs scenarios against discrete event simulations.",
	Long: `simcheck runs scenarios against discrete event simulations. ` +
		`The run command executes the traffic light demo scenario and ` +
		`reports its verdict. The config command checks property files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits with a non-zero code if the command fails.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
