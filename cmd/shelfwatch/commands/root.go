// Package commands implements the CLI commands for shelfwatch.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "shelfwatch",
	Short: "Retailer product-page availability and change monitor",
	Long: `Shelfwatch polls a fixed catalog of retailer product pages and alerts
when a tracked page comes back in stock or its content changes.

Examples:
  # Start the poll scheduler with the bundled site catalog
  shelfwatch run --sites configs/sites.yaml --db shelfwatch.db

  # Track a product page for an owner
  shelfwatch add --owner 42 --mode stock "https://www.mashkar.co.il/product/12345"

  # One-off check of a URL, printed as JSON
  shelfwatch check "https://www.mashkar.co.il/product/12345"`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.shelfwatch.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "errors only")
	rootCmd.PersistentFlags().Bool("log-json", false, "log in JSON format")
	rootCmd.PersistentFlags().String("sites", "configs/sites.yaml", "site catalog file")
	rootCmd.PersistentFlags().String("db", "shelfwatch.db", "SQLite database path")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = viper.BindPFlag("sites", rootCmd.PersistentFlags().Lookup("sites"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".shelfwatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SHELFWATCH")
	viper.AutomaticEnv()

	viper.SetDefault("proxy_base", "https://r.jina.ai/")
	viper.SetDefault("cycle_interval", "60m")
	viper.SetDefault("batch_size", 5)
	viper.SetDefault("batch_pause", "2s")

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
