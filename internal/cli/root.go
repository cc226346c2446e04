package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set during build

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "MarketSim portal",
	Long: `MarketSim portal - server rendered web portal and session tools.

The portal keeps one session against the trading backend. The serve command
renders the user and admin portals, the other commands manage the same stored
session from a terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "portal version %s\n", version)
		},
	})

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewLoginCmd())
	rootCmd.AddCommand(NewSignupCmd())
	rootCmd.AddCommand(NewLogoutCmd())
	rootCmd.AddCommand(NewWhoamiCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
