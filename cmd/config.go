package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nsauto"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage nsauto configuration.

Running bare 'nsauto config' is the same as 'nsauto config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# nsauto configuration
# See: nsauto config show (for effective values and sources)

# ERP login page URL (required)
endpoint: "{{ .Endpoint }}"

# Credentials. Prefer NSAUTO_USERNAME / NSAUTO_PASSWORD env vars over
# writing the password into this file.
# username: ""
# password: ""

# Run the browser without a visible window (default: true)
# headless: {{ .Headless }}

# Sign in by hand in the opened window instead of submitting credentials
# (default: false)
# manual_login: {{ .ManualLogin }}

# Bounded wait for each screen signal, in seconds (default: {{ .TimeoutSeconds }})
# timeout_seconds: {{ .TimeoutSeconds }}

# Polling interval while waiting, in milliseconds (default: {{ .PollMs }})
# poll_ms: {{ .PollMs }}

# Per-action retry budget (default: {{ .MaxRetries }})
# max_retries: {{ .MaxRetries }}

# Whole-record retry budget (default: {{ .RecordRetries }})
# record_retries: {{ .RecordRetries }}

# History database path (default: ~/.config/nsauto/nsauto.db)
# db_path: {{ .DBPath }}

# YAML file overriding the built-in screen selectors
# selectors: ""

# Custom record type of the order-processing middle table (default: {{ .PurgeRecType }})
# purge_rectype: {{ .PurgeRecType }}
`

type configTemplateData struct {
	Endpoint       string
	Headless       bool
	ManualLogin    bool
	TimeoutSeconds int
	PollMs         int
	MaxRetries     int
	RecordRetries  int
	DBPath         string
	PurgeRecType   int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		Endpoint:       viper.GetString("endpoint"),
		Headless:       viper.GetBool("headless"),
		ManualLogin:    viper.GetBool("manual_login"),
		TimeoutSeconds: viper.GetInt("timeout_seconds"),
		PollMs:         viper.GetInt("poll_ms"),
		MaxRetries:     viper.GetInt("max_retries"),
		RecordRetries:  viper.GetInt("record_retries"),
		DBPath:         viper.GetString("db_path"),
		PurgeRecType:   viper.GetInt("purge_rectype"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "endpoint", EnvVar: "NSAUTO_ENDPOINT"},
	{Key: "username", EnvVar: "NSAUTO_USERNAME"},
	{Key: "password", EnvVar: "NSAUTO_PASSWORD", Secret: true},
	{Key: "headless", EnvVar: "NSAUTO_HEADLESS"},
	{Key: "manual_login", EnvVar: "NSAUTO_MANUAL_LOGIN"},
	{Key: "timeout_seconds", EnvVar: "NSAUTO_TIMEOUT_SECONDS"},
	{Key: "poll_ms", EnvVar: "NSAUTO_POLL_MS"},
	{Key: "max_retries", EnvVar: "NSAUTO_MAX_RETRIES"},
	{Key: "record_retries", EnvVar: "NSAUTO_RECORD_RETRIES"},
	{Key: "db_path", EnvVar: "NSAUTO_DB_PATH"},
	{Key: "selectors", EnvVar: "NSAUTO_SELECTORS"},
	{Key: "purge_rectype", EnvVar: "NSAUTO_PURGE_RECTYPE"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret && viper.GetString(k.Key) != "" {
			val = "********"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-18s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'nsauto config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
