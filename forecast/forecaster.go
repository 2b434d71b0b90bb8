// Package forecast estimates PV output for one site from FMI weather
// forecasts or a clear-sky model, and answers interval and point-in-time
// queries over the result.
//
// A Forecaster owns the site configuration and the weather cache. It is safe
// for concurrent use.
package forecast

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devskill-org/pvforecast/clearsky"
	"github.com/devskill-org/pvforecast/fmi"
	"github.com/devskill-org/pvforecast/meteo"
	"github.com/devskill-org/pvforecast/pvmodel"
	"github.com/devskill-org/pvforecast/series"
	"github.com/devskill-org/pvforecast/utils"
)

// Default query windows.
const (
	historyWindow  = 3 * time.Hour
	forecastWindow = 68 * time.Hour
)

// WeatherProvider returns raw weather-model rows for a site and interval.
type WeatherProvider interface {
	FetchRaw(ctx context.Context, latitude, longitude float64, start, end time.Time) ([]pvmodel.RawRow, error)
}

// ClearskyProvider returns modelled clear-sky irradiance at the given times.
type ClearskyProvider interface {
	Estimate(latitude, longitude float64, times []time.Time) []clearsky.Irradiance
}

// AmbientSource returns air temperature, wind and cloud cover at the given
// times. It is optional and only used for clear-sky estimates.
type AmbientSource interface {
	Ambient(ctx context.Context, latitude, longitude float64, times []time.Time) ([]meteo.Conditions, error)
}

// Forecaster produces PV output forecasts for a single site.
type Forecaster struct {
	mu       sync.RWMutex
	config   *Config
	location *time.Location

	weather  WeatherProvider
	clearsky ClearskyProvider
	ambient  AmbientSource

	cache      *forecastCache
	generation uint64 // bumped on every location change
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// NewForecaster creates a forecaster for config using weather as the
// forecast source. The clear-sky provider defaults to the Ineichen model
// configured from config.
func NewForecaster(config *Config, weather WeatherProvider, logger *zap.SugaredLogger) (*Forecaster, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := loadTimezone(config.Timezone)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	f := &Forecaster{
		config:   config.Clone(),
		location: loc,
		weather:  weather,
		clearsky: clearsky.Model{LinkeTurbidity: config.LinkeTurbidity, Altitude: config.SiteAltitudeM},
		now:      time.Now,
		logger:   logger,
	}
	f.cache = newForecastCache(config.CacheEnabled, config.CacheRefreshInterval, f.clock)
	return f, nil
}

// NewFMIForecaster wires a forecaster to the FMI open data service, and to
// MET Norway when config asks for measured clear-sky weather.
func NewFMIForecaster(config *Config, logger *zap.SugaredLogger) (*Forecaster, error) {
	if config == nil {
		config = DefaultConfig()
	}
	client := fmi.NewClientWithHTTPClient(&http.Client{Timeout: config.FMITimeout}, config.UserAgent)
	client.SetBaseURL(config.FMIBaseURL)
	client.SetStoredQuery(config.FMIStoredQuery)
	client.SetRateLimit(config.FMIRequestsPerSecond, 1)
	client.SetLogger(logger)

	f, err := NewForecaster(config, client, logger)
	if err != nil {
		return nil, err
	}

	if config.ClearskyWeather == "metno" {
		met := meteo.NewClient(config.UserAgent)
		met.SetLogger(logger)
		f.SetAmbientSource(met)
	}
	return f, nil
}

func (f *Forecaster) clock() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now()
}

// SetClock replaces the time source. Intended for tests.
func (f *Forecaster) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// SetClearskyProvider replaces the clear-sky model.
func (f *Forecaster) SetClearskyProvider(p ClearskyProvider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearsky = p
}

// SetAmbientSource sets the source of weather for clear-sky estimates; nil
// restores the configured defaults.
func (f *Forecaster) SetAmbientSource(a AmbientSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ambient = a
}

// snapshot is an immutable copy of the settings one query needs.
type snapshot struct {
	site     pvmodel.Site
	defaults pvmodel.Defaults
	extended bool
	timestep int
	offset   int
	now      time.Time

	// location generation the site was read at
	generation uint64

	weather  WeatherProvider
	clearsky ClearskyProvider
	ambient  AmbientSource
}

func (f *Forecaster) snapshot() (snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := f.config
	if c.Latitude == nil || c.Longitude == nil {
		return snapshot{}, &ConfigurationMissingError{Field: "location"}
	}
	if c.Tilt == nil || c.Azimuth == nil {
		return snapshot{}, &ConfigurationMissingError{Field: "angles"}
	}

	return snapshot{
		site: pvmodel.Site{
			Latitude:     *c.Latitude,
			Longitude:    *c.Longitude,
			Tilt:         *c.Tilt,
			Azimuth:      *c.Azimuth,
			RatedPowerKW: c.PowerRatingKW,
		},
		defaults: pvmodel.Defaults{
			Albedo:           c.DefaultAlbedo,
			AirTempC:         c.DefaultAirTempC,
			WindSpeedMS:      c.DefaultWindSpeedMS,
			ModuleElevationM: c.ModuleElevationM,
		},
		extended:   c.ExtendedOutput,
		timestep:   c.ClearskyTimestepMinutes,
		offset:     c.ClearskyOffsetMinutes,
		now:        f.now().UTC(),
		generation: f.generation,
		weather:    f.weather,
		clearsky:   f.clearsky,
		ambient:    f.ambient,
	}, nil
}

func (f *Forecaster) process(snap snapshot, s *series.Series) *series.Series {
	p := &pvmodel.Pipeline{
		Site:           snap.site,
		Defaults:       snap.defaults,
		ExtendedOutput: snap.extended,
		Logger:         f.logger,
	}
	out, _ := p.Run(s)
	return out
}

// weatherSeries returns the normalized weather series, through the cache.
func (f *Forecaster) weatherSeries(ctx context.Context, snap snapshot, start, end time.Time) (*series.Series, error) {
	if snap.weather == nil {
		return nil, fmt.Errorf("no weather provider configured")
	}

	load := func() (*series.Series, error) {
		raw, err := snap.weather.FetchRaw(ctx, snap.site.Latitude, snap.site.Longitude, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch weather forecast: %w", err)
		}
		s := pvmodel.Normalize(raw, snap.site.Latitude, snap.site.Longitude)
		if s.Len() == 0 {
			return nil, &DataUnavailableError{
				Start:        start,
				End:          end,
				HorizonStart: snap.now,
				HorizonEnd:   snap.now.Add(fmi.ForecastHorizon),
			}
		}
		f.logger.Infow("weather forecast loaded",
			"latitude", snap.site.Latitude,
			"longitude", snap.site.Longitude,
			"rows", s.Len(),
			"first", s.Rows[0].Time,
			"last", s.Rows[s.Len()-1].Time)
		return s, nil
	}

	s, hit, err := f.cache.get(snap.generation, load)
	if err != nil {
		return nil, err
	}
	if hit {
		f.logger.Debugw("weather forecast served from cache", "rows", s.Len())
	}
	return s, nil
}

// DefaultForecast returns the whole forecast currently published: from three
// hours ago to 68 hours after that.
func (f *Forecaster) DefaultForecast(ctx context.Context) (*series.Series, error) {
	snap, err := f.snapshot()
	if err != nil {
		return nil, err
	}

	start := snap.now.Add(-historyWindow)
	s, err := f.weatherSeries(ctx, snap, start, start.Add(forecastWindow))
	if err != nil {
		return nil, err
	}
	return f.process(snap, s), nil
}

// ForecastForInterval returns the rows of the default forecast with index in
// [start, end]. It reuses the cache and never widens the provider request.
func (f *Forecaster) ForecastForInterval(ctx context.Context, start, end time.Time) (*series.Series, error) {
	s, err := f.DefaultForecast(ctx)
	if err != nil {
		return nil, err
	}
	return series.Slice(s, start, end), nil
}

// ForecastToday returns the forecast from now until 23:00 UTC today.
func (f *Forecaster) ForecastToday(ctx context.Context) (*series.Series, error) {
	now := f.clock().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 0, 0, 0, time.UTC)
	return f.ForecastForInterval(ctx, now, end)
}

// Estimate is a forecast interpolated to one instant.
type Estimate struct {
	Row     series.Row
	Columns series.ColumnSet
}

// MarshalJSON encodes the estimate like one element of a series.
func (e Estimate) MarshalJSON() ([]byte, error) {
	return series.MarshalRow(e.Row, e.Columns)
}

// Get returns the named column value, or NaN when it is not present.
func (e Estimate) Get(c series.Column) float64 {
	if !e.Columns.Has(c) {
		return math.NaN()
	}
	return e.Row.Get(c)
}

// ForecastAt interpolates the default forecast to t. The boolean is false
// when t is outside the published forecast; that is not an error.
func (f *Forecaster) ForecastAt(ctx context.Context, t time.Time) (Estimate, bool, error) {
	s, err := f.DefaultForecast(ctx)
	if err != nil {
		return Estimate{}, false, err
	}
	row, ok := series.Interpolate(s, t)
	if !ok {
		return Estimate{}, false, nil
	}
	return Estimate{Row: row, Columns: s.Columns}, true, nil
}

// ForecastNow interpolates the default forecast to the current instant.
func (f *Forecaster) ForecastNow(ctx context.Context) (Estimate, bool, error) {
	return f.ForecastAt(ctx, f.clock())
}

// NearestForecast returns the stored hh:30 row of the hour containing t.
func (f *Forecaster) NearestForecast(ctx context.Context, t time.Time) (Estimate, bool, error) {
	s, err := f.DefaultForecast(ctx)
	if err != nil {
		return Estimate{}, false, err
	}
	row, ok := series.NearestRow(s, t)
	if !ok {
		return Estimate{}, false, nil
	}
	return Estimate{Row: row, Columns: s.Columns}, true, nil
}

// ClearskyEstimateForInterval returns the modelled output under a cloudless
// sky. The first timestamp is start with its minutes replaced by the
// configured offset; then every timestep minutes up to end. A timestep of 0
// uses the configured timestep.
func (f *Forecaster) ClearskyEstimateForInterval(ctx context.Context, start, end time.Time, timestep int) (*series.Series, error) {
	snap, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	if timestep <= 0 {
		timestep = snap.timestep
	}
	if snap.clearsky == nil {
		return nil, fmt.Errorf("no clear-sky provider configured")
	}

	times := clearsky.TimeGrid(utils.WithMinute(start, snap.offset), end.UTC(), time.Duration(timestep)*time.Minute)
	s := pvmodel.FromIrradiance(snap.clearsky.Estimate(snap.site.Latitude, snap.site.Longitude, times))

	if snap.ambient != nil && s.Len() > 0 {
		s = f.withAmbient(ctx, snap, s)
	}
	return f.process(snap, s), nil
}

// withAmbient fills T, wind and cloud_cover from the ambient source. Missing
// values fall back to the defaults; a failed request leaves s unchanged.
func (f *Forecaster) withAmbient(ctx context.Context, snap snapshot, s *series.Series) *series.Series {
	conds, err := snap.ambient.Ambient(ctx, snap.site.Latitude, snap.site.Longitude, s.Times())
	if err != nil {
		f.logger.Warnw("ambient conditions unavailable, using defaults", "error", err)
		return s
	}

	out := s.Clone()
	for i := range out.Rows {
		r := &out.Rows[i]
		r.AirTemp, r.Wind, r.CloudCover = snap.defaults.AirTempC, snap.defaults.WindSpeedMS, 0
		if i >= len(conds) {
			continue
		}
		if c := conds[i]; !math.IsNaN(c.AirTemp) {
			r.AirTemp = c.AirTemp
		}
		if c := conds[i]; !math.IsNaN(c.Wind) {
			r.Wind = c.Wind
		}
		if c := conds[i]; !math.IsNaN(c.CloudCover) {
			r.CloudCover = c.CloudCover
		}
	}
	out.Columns = out.Columns.With(series.ColAirTemp, series.ColWind, series.ColCloudCover)
	return out
}

// DefaultClearskyEstimate covers the same window as DefaultForecast, starting
// on the hour three hours ago.
func (f *Forecaster) DefaultClearskyEstimate(ctx context.Context) (*series.Series, error) {
	start := utils.TruncateToHour(f.clock().Add(-historyWindow))
	return f.ClearskyEstimateForInterval(ctx, start, start.Add(forecastWindow), 0)
}

// AddLocalTime returns a copy of s with a local_time column in the
// configured timezone.
func (f *Forecaster) AddLocalTime(s *series.Series) *series.Series {
	return series.AddLocalTime(s, f.Timezone())
}

// SetLocation sets the site coordinates. The weather cache is cleared when
// they differ from the current ones.
func (f *Forecaster) SetLocation(latitude, longitude float64) error {
	if err := validateLocation(latitude, longitude); err != nil {
		return err
	}

	f.mu.Lock()
	changed := f.config.Latitude == nil || f.config.Longitude == nil ||
		*f.config.Latitude != latitude || *f.config.Longitude != longitude
	f.config.Latitude = &latitude
	f.config.Longitude = &longitude
	if changed {
		f.generation++
	}
	generation := f.generation
	f.mu.Unlock()

	if changed {
		f.cache.invalidate(generation)
		f.logger.Infow("location changed, weather cache cleared", "latitude", latitude, "longitude", longitude)
	}
	return nil
}

// SetAngles sets panel tilt (0-90) and azimuth (0-360, 180 is south).
func (f *Forecaster) SetAngles(tilt, azimuth float64) error {
	if err := validateAngles(tilt, azimuth); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.Tilt = &tilt
	f.config.Azimuth = &azimuth
	return nil
}

// SetNominalPowerKW sets the rated output under standard test conditions.
func (f *Forecaster) SetNominalPowerKW(kw float64) error {
	if !(kw > 0) {
		return &ValidationError{Field: "power_rating_kw", Message: fmt.Sprintf("must be greater than 0, got: %f", kw)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.PowerRatingKW = kw
	return nil
}

// SetTimezone sets the zone used for local_time. Unknown zones are rejected
// and the previous zone is kept.
func (f *Forecaster) SetTimezone(name string) error {
	loc, err := loadTimezone(name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.Timezone = name
	f.location = loc
	return nil
}

// Timezone returns the configured zone.
func (f *Forecaster) Timezone() *time.Location {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.location
}

// SetExtendedOutput toggles the irradiance and intermediate columns.
func (f *Forecaster) SetExtendedOutput(extended bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.ExtendedOutput = extended
}

// SetCache enables or disables the weather cache.
func (f *Forecaster) SetCache(enabled bool) {
	f.mu.Lock()
	f.config.CacheEnabled = enabled
	f.mu.Unlock()
	f.cache.setEnabled(enabled)
}

// SetCacheRefreshInterval sets how old the cached forecast may get before
// the provider is queried again.
func (f *Forecaster) SetCacheRefreshInterval(d time.Duration) error {
	if d <= 0 {
		return &ValidationError{Field: "cache_refresh_interval", Message: fmt.Sprintf("must be positive, got: %v", d)}
	}
	f.mu.Lock()
	f.config.CacheRefreshInterval = d
	f.mu.Unlock()
	f.cache.setRefreshInterval(d)
	return nil
}

// ClearCache drops the cached weather forecast.
func (f *Forecaster) ClearCache() {
	f.cache.clear()
}

// CacheStats reports weather cache activity.
func (f *Forecaster) CacheStats() CacheStats {
	return f.cache.stats()
}

// SetDefaultAirTemp sets the air temperature used when a series has none,
// as in clear-sky estimates.
func (f *Forecaster) SetDefaultAirTemp(celsius float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.DefaultAirTempC = celsius
}

// SetDefaultWindSpeed sets the 2 m wind speed used when a series has none.
func (f *Forecaster) SetDefaultWindSpeed(ms float64) error {
	if ms < 0 {
		return &ValidationError{Field: "default_wind_speed_ms", Message: fmt.Sprintf("must be non-negative, got: %f", ms)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.DefaultWindSpeedMS = ms
	return nil
}

// SetModuleElevation sets the module height above ground. It scales the
// wind used by the temperature model.
func (f *Forecaster) SetModuleElevation(meters float64) error {
	if !(meters > 0) {
		return &ValidationError{Field: "module_elevation_m", Message: fmt.Sprintf("must be greater than 0, got: %f", meters)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.ModuleElevationM = meters
	return nil
}

// SetDefaultAlbedo sets the ground reflectivity used when a series has no
// albedo, in [0,1].
func (f *Forecaster) SetDefaultAlbedo(albedo float64) error {
	if albedo < 0 || albedo > 1 {
		return &ValidationError{Field: "default_albedo", Message: fmt.Sprintf("must be between 0 and 1, got: %f", albedo)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.DefaultAlbedo = albedo
	return nil
}

// SetClearskyTimestep sets the clear-sky estimate spacing in minutes.
func (f *Forecaster) SetClearskyTimestep(minutes int) error {
	if minutes <= 0 {
		return &ValidationError{Field: "clearsky_timestep_minutes", Message: fmt.Sprintf("must be greater than 0, got: %d", minutes)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.ClearskyTimestepMinutes = minutes
	return nil
}

// SetClearskyOffset sets the minute of the first clear-sky timestamp.
func (f *Forecaster) SetClearskyOffset(minutes int) error {
	if minutes < 0 || minutes > 59 {
		return &ValidationError{Field: "clearsky_offset_minutes", Message: fmt.Sprintf("must be between 0 and 59, got: %d", minutes)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.ClearskyOffsetMinutes = minutes
	return nil
}

// Config returns a copy of the current configuration.
func (f *Forecaster) Config() *Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.config.Clone()
}

// Info returns a human readable summary of the settings.
func (f *Forecaster) Info() string {
	c := f.Config()

	var b strings.Builder
	b.WriteString("PV forecaster settings\n")
	fmt.Fprintf(&b, "Location: %s, %s\n", formatOptional(c.Latitude, "°"), formatOptional(c.Longitude, "°"))
	fmt.Fprintf(&b, "Tilt: %s Azimuth: %s\n", formatOptional(c.Tilt, "°"), formatOptional(c.Azimuth, "°"))
	fmt.Fprintf(&b, "Nominal power: %g kW\n", c.PowerRatingKW)
	fmt.Fprintf(&b, "Timezone: %s\n", c.Timezone)
	fmt.Fprintf(&b, "Extended output: %t\n", c.ExtendedOutput)
	fmt.Fprintf(&b, "Cache: %t (refresh after %s)\n", c.CacheEnabled, c.CacheRefreshInterval)
	fmt.Fprintf(&b, "Clear-sky timestep: %d min, offset: %d min\n", c.ClearskyTimestepMinutes, c.ClearskyOffsetMinutes)
	fmt.Fprintf(&b, "Defaults: albedo %g, air %g°C, wind %g m/s, module elevation %g m\n",
		c.DefaultAlbedo, c.DefaultAirTempC, c.DefaultWindSpeedMS, c.ModuleElevationM)
	return b.String()
}

func formatOptional(v *float64, unit string) string {
	if v == nil {
		return "unset"
	}
	return fmt.Sprintf("%g%s", *v, unit)
}
