package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deagent-io/deagent/internal/version"
	"github.com/deagent-io/deagent/pkg/log"
)

var (
	cfgFile     string
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "deagent",
	Short: "Chat with a data-engineering multi-agent backend",
	Long: `deagent is a terminal chat client for a remote data-engineering
multi-agent backend. Pick a focus topic, ask questions about pipelines,
schemas, or performance, and watch the agent team work through each
request step by step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetVersionString())
			os.Exit(0)
		}
		// Chatting is the main surface; the bare command opens it.
		return runChat(cmd, args)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deagent/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "Show version information")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding verbose flag: %v\n", err)
	}
}

func initLogging() {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}

	log.InitLogger(os.Stderr, level, true)
	viper.AutomaticEnv()
}

// configPath resolves the config file location: the --config flag when
// given, otherwise ~/.deagent/config.yaml.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.deagent/config.yaml"
}
