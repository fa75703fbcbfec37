package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/config"
	"github.com/Iron-Ham/hostbridge/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify hostbridge configuration",
	Long: `View or modify hostbridge configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  hostbridge config set endpoint.url loopback://local
  hostbridge config set bridge.max_in_flight 4
  hostbridge config set events.log_patterns "graph.*,auth.*"

Valid keys:
  endpoint.url                  - Remote endpoint URL (schemes: ` + strings.Join(api.Schemes(), ", ") + `)
  endpoint.workspace            - Workspace the bridge authenticates against
  endpoint.api_key              - API key for the workspace
  bridge.token_refresh_seconds  - Workspace token refresh interval
  bridge.start_timeout_seconds  - Bound on bridge start (0 disables)
  bridge.max_in_flight          - Concurrent remote calls (0 is unlimited)
  logging.enabled               - Write bridge.log (true/false)
  logging.level                 - Options: debug, info, warn, error
  logging.dir                   - Log directory
  logging.max_size_mb           - Rotate bridge.log past this size (0 disables)
  logging.max_backups           - Rotated files to keep
  logging.compress              - Gzip rotated files (true/false)
  metrics.enabled               - Serve /metrics while a host runs (true/false)
  metrics.addr                  - Metrics listen address
  events.log_patterns           - Comma-separated event patterns to log`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/hostbridge/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configKeyTypes lists the keys accepted by "config set" and how their
// values are parsed.
var configKeyTypes = map[string]string{
	"endpoint.url":                 "string",
	"endpoint.workspace":           "string",
	"endpoint.api_key":             "string",
	"bridge.token_refresh_seconds": "int",
	"bridge.start_timeout_seconds": "int",
	"bridge.max_in_flight":         "int",
	"logging.enabled":              "bool",
	"logging.level":                "string",
	"logging.dir":                  "string",
	"logging.max_size_mb":          "int",
	"logging.max_backups":          "int",
	"logging.compress":             "bool",
	"metrics.enabled":              "bool",
	"metrics.addr":                 "string",
	"events.log_patterns":          "list",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "Config file: (none - using defaults)")
	}
	fmt.Fprintln(out)

	shown := *cfg
	shown.Endpoint = cfg.Endpoint.Redacted()
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseConfigValue converts a raw "config set" argument to the key's type.
func parseConfigValue(key, value string) (any, error) {
	keyType, ok := configKeyTypes[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'hostbridge config set --help' to see valid keys", key)
	}

	switch keyType {
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return intVal, nil
	case "list":
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		if key == "logging.level" {
			return strings.ToLower(value), nil
		}
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)

	// Reject the value before anything reaches disk
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configFile := targetConfigFile()
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	shown := typedValue
	if key == "endpoint.api_key" {
		shown = "****"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, shown)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const configHeader = `# Hostbridge Configuration
#
# endpoint: the remote the bridge dials. Leave url empty until you have one;
#   "loopback://local" runs against the in-process loopback remote.
# bridge: token refresh, start timeout and the in-flight call limit.
# logging: bridge.log location, level and rotation.
# metrics: Prometheus /metrics while a host runs.
# events: glob patterns over event types that hosts log (e.g. "auth.*").
#
# Every key can be overridden with HOSTBRIDGE_<SECTION>_<KEY>.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := targetConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'hostbridge config set' to modify values", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to render default configuration: %w", err)
	}
	if err := os.WriteFile(configFile, append([]byte(configHeader), body...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Set endpoint.url and endpoint.workspace before running a host.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nLogs: %s\n", filepath.Join(config.Get().Logging.ResolveDir(), logging.LogFileName))
	fmt.Fprintf(out, "Environment variables: %s_* (e.g., %s_ENDPOINT_URL)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}

// targetConfigFile is the file "config set" and "config init" write: the
// active config file when there is one, otherwise the default location.
func targetConfigFile() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.ConfigFile()
}
