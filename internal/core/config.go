package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// server components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`

	Web struct {
		// Port serving both the static client bundle and the /ws endpoint.
		HTTPPort int `mapstructure:"http_port"`
		// Full (or relative to the current directory) path to the directory
		// containing the built browser client.
		ClientDir string `mapstructure:"client_dir"`
	} `mapstructure:"web"`

	Game struct {
		// How long a disconnected player's side is held for reconnection
		// before the session is evicted. Zero disables automatic eviction.
		ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
		// Gold each side starts a match with.
		StartingGold int `mapstructure:"starting_gold"`
		// Playfield dimensions in grid cells.
		GridWidth  int `mapstructure:"grid_width"`
		GridHeight int `mapstructure:"grid_height"`
	} `mapstructure:"game"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Whether to include the caller in each log line.
		IncludeCaller bool `mapstructure:"include_caller"`
	} `mapstructure:"logging"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log all decoded client/server messages to stdout.
		MessageLoggingEnabled bool `mapstructure:"message_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "RAMPART"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, web.http_port can be set using: <envVarPrefix>_WEB_HTTP_PORT
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

// WebAddress returns the host:port pair the HTTP frontend listens on.
func (c *Config) WebAddress() string {
	return fmt.Sprintf("%s:%v", c.Hostname, c.Web.HTTPPort)
}
