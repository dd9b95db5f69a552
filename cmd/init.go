package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deagent-io/deagent/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Create a configuration file with defaults at ~/.deagent/config.yaml
(or the path given with --config). Edit it afterwards to set the backend
endpoint and API key, or export DEAGENT_ENDPOINT and DEAGENT_API_KEY.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.SaveConfig(path); err != nil {
		return err
	}

	PrintLogo()
	fmt.Printf("✅ Wrote %s\n\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  1. Set backend.endpoint and backend.api_key in the config")
	fmt.Println("     (or export DEAGENT_ENDPOINT and DEAGENT_API_KEY)")
	fmt.Println("  2. Run 'deagent doctor' to verify the connection")
	fmt.Println("  3. Run 'deagent' to start chatting")
	return nil
}
