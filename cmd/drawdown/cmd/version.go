package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the drawdown CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("drawdown version %s\n", version)
		fmt.Println("Drawdown-timed savings plan simulator")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
