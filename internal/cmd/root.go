package cmd

import (
	"fmt"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pinmap/pinmap/internal/config"
	"github.com/pinmap/pinmap/internal/core"
	"github.com/pinmap/pinmap/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Compose and render marker maps from addresses and coordinates",
	Long: `pinmap composes map views from literal coordinates, geocoded addresses,
and saved JSON documents, then renders them as tables, Leaflet HTML pages,
or static PNG images.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", config.AppName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Initialize CLI logger early so config loading can use it
	observability.InitCLILogger(config.AppName, verbose)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		appConfigDir := gfconfig.GetAppConfigDir(config.AppName)
		if appConfigDir != "" {
			viper.AddConfigPath(appConfigDir)
		} else {
			if verbose {
				observability.CLILogger.Warn("Could not resolve XDG config directory, falling back to config directory default")
			}
			fallback := config.DefaultConfigDir()
			if fallback == "" {
				ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Could not resolve a config directory", nil)
			}
			viper.AddConfigPath(fallback)
		}
		viper.SetConfigName("config")

		// Also search in current directory
		viper.AddConfigPath("./config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
		}
	} else {
		// It's OK if config file doesn't exist, we have defaults
		if verbose {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				observability.CLILogger.Debug("No config file found, using defaults and environment variables")
			} else {
				observability.CLILogger.Warn("Error reading config file", zap.Error(err))
			}
		}
	}

	setDefaults()
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.profile", "structured")

	// Store defaults
	viper.SetDefault("store.driver", "libsql")
	viper.SetDefault("store.path", config.DefaultStorePath())
	viper.SetDefault("store.url", "")
	viper.SetDefault("store.auth_token", "")

	// Cache defaults
	viper.SetDefault("cache.hit_ttl", "168h")
	viper.SetDefault("cache.miss_ttl", "1h")
	viper.SetDefault("cache.error_ttl", "30s")

	// Initial view defaults
	viper.SetDefault("map.lat", core.DefaultLat)
	viper.SetDefault("map.long", core.DefaultLong)
	viper.SetDefault("map.zoom", core.DefaultZoom)
	viper.SetDefault("map.address", "")
	viper.SetDefault("map.container_id", "map")
	viper.SetDefault("map.auto_locate", false)
	viper.SetDefault("map.tile_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("map.width", 800)
	viper.SetDefault("map.height", 600)

	// Geocoder defaults
	viper.SetDefault("geocoder.provider", "nominatim")
	viper.SetDefault("geocoder.user_agent", config.AppName)
	viper.SetDefault("geocoder.limit", 5)
	viper.SetDefault("geocoder.min_interval", "1s")
	viper.SetDefault("geocoder.timeout", "10s")

	// Locator defaults
	viper.SetDefault("locator.timeout", "10s")
	viper.SetDefault("locator.requests_per_min", 45)

	// Rate limit overrides (optional)
	viper.SetDefault("rate_limits", map[string]int{})
	viper.SetDefault("rate_limit_margin", 0.9)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Health check defaults
	viper.SetDefault("health.enabled", true)

	// Debug defaults
	viper.SetDefault("debug.enabled", false)
	viper.SetDefault("debug.pprof_enabled", false)
}
