package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erptools/nsauto/internal/console"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *console.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "nsauto",
	Short: "Batch driver for repetitive ERP back-office workflows",
	Long: `nsauto drives a real browser session through the ERP's web UI to
process spreadsheets of records in bulk: creating corrective red slips,
adjusting returned inventory, invoicing held orders, and purging stale
staging rows. Every run produces an audit workbook and is recorded in a
local history database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without touching the ERP")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/nsauto/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "nsauto")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("NSAUTO")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "nsauto")

	viper.SetDefault("endpoint", "")
	viper.SetDefault("username", "")
	viper.SetDefault("password", "")
	viper.SetDefault("headless", true)
	viper.SetDefault("manual_login", false)
	viper.SetDefault("timeout_seconds", 30)
	viper.SetDefault("poll_ms", 250)
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("record_retries", 1)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "nsauto.db"))
	viper.SetDefault("selectors", "")
	viper.SetDefault("purge_rectype", 396)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = console.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}
