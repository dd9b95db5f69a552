package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deagent-io/deagent/internal/version"
)

var skipUpdateCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		PrintLogo()
		fmt.Println(version.GetVersionString())

		if skipUpdateCheck {
			return
		}

		hasUpdate, latest, err := version.CheckForUpdate()
		switch {
		case err != nil:
			fmt.Printf("⚠️  Update check failed: %v\n", err)
		case hasUpdate:
			fmt.Printf("📦 Update available: %s (you have %s)\n", latest, version.GetShortVersion())
			fmt.Println("   https://github.com/deagent-io/deagent/releases/latest")
		case latest != "":
			fmt.Printf("✅ Up to date (%s)\n", latest)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&skipUpdateCheck, "no-update-check", false, "Skip the release update check")
}
