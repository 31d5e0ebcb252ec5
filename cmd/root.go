package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dualbot",
	Short: "Chat bot runtime for VK and Telegram",
	Long: `dualbot receives VK and Telegram updates through long polling or webhooks,
normalizes them into one event shape and runs them through a handler chain
on a fixed worker pool.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $DUALBOT_CONFIG, ./config.json or ./config.yaml)")
}
