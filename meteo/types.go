package meteo

import "time"

// PointGeometry represents a GeoJSON point geometry
type PointGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude, altitude]
}

// ForecastMeta contains metadata for the forecast
type ForecastMeta struct {
	UpdatedAt time.Time `json:"updated_at"`
}

// ForecastTimeInstant holds the instant parameters the PV model reads.
// Cloud area fraction is in percent.
type ForecastTimeInstant struct {
	AirTemperature    *float64 `json:"air_temperature,omitempty"`
	CloudAreaFraction *float64 `json:"cloud_area_fraction,omitempty"`
	WindSpeed         *float64 `json:"wind_speed,omitempty"`
}

// ForecastInstantData contains instant forecast data
type ForecastInstantData struct {
	Details *ForecastTimeInstant `json:"details,omitempty"`
}

// ForecastTimeStepData contains forecast data for a specific time step
type ForecastTimeStepData struct {
	Instant *ForecastInstantData `json:"instant,omitempty"`
}

// ForecastTimeStep represents a forecast for a specific time step
type ForecastTimeStep struct {
	Time time.Time             `json:"time"`
	Data *ForecastTimeStepData `json:"data,omitempty"`
}

// Forecast contains the main forecast data
type Forecast struct {
	Meta       ForecastMeta       `json:"meta"`
	Timeseries []ForecastTimeStep `json:"timeseries"`
}

// METJSONForecast represents the root forecast response
type METJSONForecast struct {
	Type       string         `json:"type"`
	Geometry   *PointGeometry `json:"geometry,omitempty"`
	Properties *Forecast      `json:"properties,omitempty"`
}

// Location represents coordinates for a forecast request
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  *int
}

// QueryParams represents query parameters for forecast requests
type QueryParams struct {
	Location Location
}

// Conditions are the ambient inputs of the panel temperature model at one
// instant. Unknown values are NaN. CloudCover is a fraction in [0,1].
type Conditions struct {
	Time       time.Time
	AirTemp    float64
	Wind       float64
	CloudCover float64
}

func (ts *ForecastTimeStep) details() *ForecastTimeInstant {
	if ts == nil || ts.Data == nil || ts.Data.Instant == nil {
		return nil
	}
	return ts.Data.Instant.Details
}

// IntPtr is a helper function to get a pointer to an int value
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr is a helper function to get a pointer to a float64 value
func Float64Ptr(f float64) *float64 {
	return &f
}
