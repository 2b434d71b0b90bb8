package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/devskill-org/pvforecast/fmi"
)

// Config represents the configuration of a forecaster
type Config struct {
	// Site and panel. Unset values are nil; forecasts fail until they are set.
	Latitude      *float64 `json:"latitude,omitempty"`  // WGS84 latitude
	Longitude     *float64 `json:"longitude,omitempty"` // WGS84 longitude
	Tilt          *float64 `json:"tilt,omitempty"`      // Panel tilt from horizontal, 0-90 degrees
	Azimuth       *float64 `json:"azimuth,omitempty"`   // Panel facing, 0 north, 180 south
	PowerRatingKW float64  `json:"power_rating_kw"`     // Rated output at standard test conditions
	SiteAltitudeM float64  `json:"site_altitude_m"`     // Site elevation above sea level, used by the clear-sky model

	// Output settings
	Timezone       string `json:"timezone"`        // IANA zone for the local_time column
	ExtendedOutput bool   `json:"extended_output"` // Include irradiance and intermediate columns

	// Forecast cache
	CacheEnabled         bool          `json:"cache_enabled"`
	CacheRefreshInterval time.Duration `json:"cache_refresh_interval"` // Minimum age before the provider is queried again

	// Clear-sky estimates
	ClearskyTimestepMinutes int     `json:"clearsky_timestep_minutes"`
	ClearskyOffsetMinutes   int     `json:"clearsky_offset_minutes"` // Minute of the first clear-sky timestamp
	LinkeTurbidity          float64 `json:"linke_turbidity"`
	ClearskyWeather         string  `json:"clearsky_weather"` // "" uses defaults, "metno" uses MET Norway

	// Substitutes for missing inputs
	DefaultAlbedo      float64 `json:"default_albedo"`
	DefaultAirTempC    float64 `json:"default_air_temp_c"`
	DefaultWindSpeedMS float64 `json:"default_wind_speed_ms"`
	ModuleElevationM   float64 `json:"module_elevation_m"` // Module height above ground

	// Weather providers
	FMIBaseURL           string        `json:"fmi_base_url"`
	FMIStoredQuery       string        `json:"fmi_stored_query"`
	FMIRequestsPerSecond float64       `json:"fmi_requests_per_second"`
	FMITimeout           time.Duration `json:"fmi_timeout"`
	UserAgent            string        `json:"user_agent"` // Sent to FMI and MET Norway

	// HTTP API
	HTTPPort       int           `json:"http_port"` // 0 = disabled
	WSPushInterval time.Duration `json:"ws_push_interval"`

	// Logging settings
	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		PowerRatingKW:           1.0,
		Timezone:                "UTC",
		CacheEnabled:            true,
		CacheRefreshInterval:    60 * time.Second,
		ClearskyTimestepMinutes: 60,
		ClearskyOffsetMinutes:   30,
		LinkeTurbidity:          3.0,
		DefaultAlbedo:           0.25,
		DefaultAirTempC:         20.0,
		DefaultWindSpeedMS:      2.0,
		ModuleElevationM:        7.0,
		FMIBaseURL:              "https://opendata.fmi.fi/wfs",
		FMIStoredQuery:          fmi.DefaultStoredQuery,
		FMIRequestsPerSecond:    1.0,
		FMITimeout:              30 * time.Second,
		UserAgent:               "pvforecast/1.0",
		WSPushInterval:          10 * time.Second,
		LogLevel:                "info",
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks if the configuration values are valid. Site and panel
// fields may be unset.
func (c *Config) Validate() error {
	if c.Latitude != nil || c.Longitude != nil {
		if c.Latitude == nil || c.Longitude == nil {
			return fmt.Errorf("latitude and longitude must be set together")
		}
		if err := validateLocation(*c.Latitude, *c.Longitude); err != nil {
			return err
		}
	}

	if c.Tilt != nil || c.Azimuth != nil {
		if c.Tilt == nil || c.Azimuth == nil {
			return fmt.Errorf("tilt and azimuth must be set together")
		}
		if err := validateAngles(*c.Tilt, *c.Azimuth); err != nil {
			return err
		}
	}

	if c.PowerRatingKW <= 0 {
		return fmt.Errorf("power_rating_kw must be greater than 0, got: %f", c.PowerRatingKW)
	}

	if _, err := loadTimezone(c.Timezone); err != nil {
		return err
	}

	if c.CacheRefreshInterval <= 0 {
		return fmt.Errorf("cache_refresh_interval must be greater than 0, got: %s", c.CacheRefreshInterval)
	}

	if c.ClearskyTimestepMinutes <= 0 {
		return fmt.Errorf("clearsky_timestep_minutes must be greater than 0, got: %d", c.ClearskyTimestepMinutes)
	}

	if c.ClearskyOffsetMinutes < 0 || c.ClearskyOffsetMinutes > 59 {
		return fmt.Errorf("clearsky_offset_minutes must be between 0 and 59, got: %d", c.ClearskyOffsetMinutes)
	}

	if c.LinkeTurbidity <= 0 {
		return fmt.Errorf("linke_turbidity must be greater than 0, got: %f", c.LinkeTurbidity)
	}

	if c.ClearskyWeather != "" && c.ClearskyWeather != "metno" {
		return fmt.Errorf("invalid clearsky_weather: %s, must be empty or metno", c.ClearskyWeather)
	}

	if c.DefaultAlbedo < 0 || c.DefaultAlbedo > 1 {
		return fmt.Errorf("default_albedo must be between 0 and 1, got: %f", c.DefaultAlbedo)
	}

	if c.DefaultWindSpeedMS < 0 {
		return fmt.Errorf("default_wind_speed_ms must be non-negative, got: %f", c.DefaultWindSpeedMS)
	}

	if c.ModuleElevationM <= 0 {
		return fmt.Errorf("module_elevation_m must be greater than 0, got: %f", c.ModuleElevationM)
	}

	if c.FMIBaseURL == "" {
		return fmt.Errorf("fmi_base_url cannot be empty")
	}

	if c.FMIStoredQuery == "" {
		return fmt.Errorf("fmi_stored_query cannot be empty")
	}

	if c.FMITimeout <= 0 {
		return fmt.Errorf("fmi_timeout must be greater than 0, got: %s", c.FMITimeout)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got: %d", c.HTTPPort)
	}

	if c.WSPushInterval <= 0 {
		return fmt.Errorf("ws_push_interval must be greater than 0, got: %s", c.WSPushInterval)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		CacheRefreshInterval string `json:"cache_refresh_interval"`
		FMITimeout           string `json:"fmi_timeout"`
		WSPushInterval       string `json:"ws_push_interval"`
	}{
		Alias:                (*Alias)(c),
		CacheRefreshInterval: c.CacheRefreshInterval.String(),
		FMITimeout:           c.FMITimeout.String(),
		WSPushInterval:       c.WSPushInterval.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		CacheRefreshInterval string `json:"cache_refresh_interval"`
		FMITimeout           string `json:"fmi_timeout"`
		WSPushInterval       string `json:"ws_push_interval"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.CacheRefreshInterval != "" {
		if c.CacheRefreshInterval, err = time.ParseDuration(aux.CacheRefreshInterval); err != nil {
			return fmt.Errorf("invalid cache_refresh_interval: %w", err)
		}
	}

	if aux.FMITimeout != "" {
		if c.FMITimeout, err = time.ParseDuration(aux.FMITimeout); err != nil {
			return fmt.Errorf("invalid fmi_timeout: %w", err)
		}
	}

	if aux.WSPushInterval != "" {
		if c.WSPushInterval, err = time.ParseDuration(aux.WSPushInterval); err != nil {
			return fmt.Errorf("invalid ws_push_interval: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Latitude = clonePtr(c.Latitude)
	out.Longitude = clonePtr(c.Longitude)
	out.Tilt = clonePtr(c.Tilt)
	out.Azimuth = clonePtr(c.Azimuth)
	return &out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func validateLocation(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return &ValidationError{Field: "latitude", Message: fmt.Sprintf("must be between -90 and 90, got: %f", latitude)}
	}
	if longitude < -180 || longitude > 180 {
		return &ValidationError{Field: "longitude", Message: fmt.Sprintf("must be between -180 and 180, got: %f", longitude)}
	}
	return nil
}

func validateAngles(tilt, azimuth float64) error {
	if tilt < 0 || tilt > 90 {
		return &ValidationError{Field: "tilt", Message: fmt.Sprintf("must be between 0 and 90, got: %f", tilt)}
	}
	if azimuth < 0 || azimuth >= 360 {
		return &ValidationError{Field: "azimuth", Message: fmt.Sprintf("must be in [0, 360), got: %f", azimuth)}
	}
	return nil
}

// loadTimezone resolves an IANA zone name. The empty name and "Local" are
// rejected because they do not name a fixed zone.
func loadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, &InvalidTimezoneError{Name: name}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &InvalidTimezoneError{Name: name, Err: err}
	}
	return loc, nil
}
