package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the portalctl version",
	// Version printing needs no config or session.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("portalctl " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
