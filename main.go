// Package main provides the PV power forecaster entry point and CLI interface.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devskill-org/pvforecast/forecast"
)

const envPrefix = "PVFORECAST"

var rootCmd = &cobra.Command{
	Use:   "pvforecast",
	Short: "PV power forecaster",
	Long: `pvforecast estimates photovoltaic output for a site from the FMI
HARMONIE-AROME weather forecast or from a clear-sky model.

Settings are read from a JSON config file, then a .env file, then
PVFORECAST_* environment variables, then command line flags.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file path (JSON)")
	flags.Float64("latitude", 0, "Site latitude in degrees")
	flags.Float64("longitude", 0, "Site longitude in degrees")
	flags.Float64("tilt", 0, "Panel tilt from horizontal, 0-90 degrees")
	flags.Float64("azimuth", 0, "Panel azimuth, 0 north, 180 south")
	flags.Float64("power", 0, "Rated panel power in kW")
	flags.String("timezone", "", "IANA timezone for local time output")
	flags.Bool("extended", false, "Include irradiance and intermediate columns")
	flags.Bool("local-time", false, "Add a local_time column")
	flags.Bool("json", false, "Print JSON instead of a table")
	flags.String("clearsky-weather", "", `Weather for clear-sky estimates: "" for defaults or "metno"`)
	flags.String("user-agent", "", "User-Agent sent to weather services")
	flags.Bool("debug", false, "Enable development logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// settings resolves the layered configuration for a command.
func settings(cmd *cobra.Command) (*viper.Viper, *forecast.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	config := forecast.DefaultConfig()
	if path := v.GetString("config"); path != "" {
		loaded, err := forecast.LoadConfig(path)
		if err != nil {
			return nil, nil, err
		}
		config = loaded
	}

	floatOverrides := []struct {
		key string
		dst **float64
	}{
		{"latitude", &config.Latitude},
		{"longitude", &config.Longitude},
		{"tilt", &config.Tilt},
		{"azimuth", &config.Azimuth},
	}
	for _, o := range floatOverrides {
		if v.IsSet(o.key) {
			val := v.GetFloat64(o.key)
			*o.dst = &val
		}
	}
	if v.IsSet("power") {
		config.PowerRatingKW = v.GetFloat64("power")
	}
	if v.IsSet("timezone") {
		config.Timezone = v.GetString("timezone")
	}
	if v.IsSet("extended") {
		config.ExtendedOutput = v.GetBool("extended")
	}
	if v.IsSet("clearsky-weather") {
		config.ClearskyWeather = v.GetString("clearsky-weather")
	}
	if v.IsSet("user-agent") {
		config.UserAgent = v.GetString("user-agent")
	}
	if v.IsSet("port") {
		config.HTTPPort = v.GetInt("port")
	}
	if v.GetBool("debug") {
		config.LogLevel = "debug"
	}

	if err := config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return v, config, nil
}

// newLogger builds a development logger with --debug and a production one
// otherwise. Both write to stderr so table and JSON output stay clean.
func newLogger(debug bool, level string) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// app is what every subcommand needs.
type app struct {
	viper      *viper.Viper
	config     *forecast.Config
	forecaster *forecast.Forecaster
	logger     *zap.SugaredLogger
}

func newApp(cmd *cobra.Command) (*app, error) {
	v, config, err := settings(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(v.GetBool("debug"), config.LogLevel)
	if err != nil {
		return nil, err
	}

	f, err := forecast.NewFMIForecaster(config, logger)
	if err != nil {
		return nil, err
	}

	logger.Debugw("configuration loaded", "config", config.String())
	return &app{viper: v, config: config, forecaster: f, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
