package fmi

import (
	"math"
	"time"
)

// Stored query parameter names.
const (
	ParamTemperature          = "Temperature"
	ParamGlobalRadiationAccum = "RadiationGlobalAccumulation"
	ParamNetSWRadiationAccum  = "RadiationNetSurfaceSWAccumulation"
	ParamSWRadiationAccum     = "RadiationSWAccumulation"
	ParamWindSpeed            = "WindSpeedMS"
	ParamTotalCloudCover      = "TotalCloudCover"
)

// DefaultStoredQuery is the HARMONIE surface point forecast in multipoint
// coverage form.
const DefaultStoredQuery = "fmi::forecast::harmonie::surface::point::multipointcoverage"

// DefaultParameters are the fields the PV model needs.
var DefaultParameters = []string{
	ParamTemperature,
	ParamGlobalRadiationAccum,
	ParamNetSWRadiationAccum,
	ParamSWRadiationAccum,
	ParamWindSpeed,
	ParamTotalCloudCover,
}

// ForecastHorizon is how far ahead the service publishes data.
const ForecastHorizon = 66 * time.Hour

// Location represents a geographic point
type Location struct {
	Latitude  float64
	Longitude float64
}

// QueryParams represents the parameters for a stored query request
type QueryParams struct {
	Location  Location
	StartTime time.Time
	EndTime   time.Time
	// Parameters defaults to DefaultParameters when empty.
	Parameters []string
	// Timestep in minutes, 0 leaves the service default of 60.
	Timestep int
}

// Forecast is a decoded multipoint coverage.
type Forecast struct {
	Fields []string
	Points []Point
}

// Point is one grid point at one instant.
type Point struct {
	Latitude  float64
	Longitude float64
	Time      time.Time
	Values    map[string]float64
}

// Value returns the named field, or NaN when it is absent.
func (p Point) Value(name string) float64 {
	v, ok := p.Values[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Len returns the number of points.
func (f *Forecast) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Points)
}
