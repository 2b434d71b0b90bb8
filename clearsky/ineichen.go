// Package clearsky estimates cloudless-atmosphere irradiance with the
// Ineichen-Perez model.
//
// Ineichen, P. and Perez, R. (2002). A new airmass independent formulation
// for the Linke turbidity coefficient. Solar Energy 73(3), 151-157.
package clearsky

import (
	"math"
	"time"

	"github.com/devskill-org/pvforecast/sun"
)

const (
	solarConstant = 1361.0 // W/m² at mean Earth-Sun distance

	// DefaultLinkeTurbidity is a typical mid-latitude annual value.
	DefaultLinkeTurbidity = 3.0
)

// Irradiance holds clear-sky irradiance components in W/m².
type Irradiance struct {
	Time time.Time
	DNI  float64
	DHI  float64
	GHI  float64
	// Zenith is the apparent solar zenith used for the estimate, in degrees.
	Zenith float64
}

// Model is an Ineichen-Perez clear-sky model for a site.
type Model struct {
	LinkeTurbidity float64 // dimensionless, typically 2-6
	Altitude       float64 // site altitude above sea level in meters
}

// NewModel returns a model with the default Linke turbidity at sea level.
func NewModel() Model {
	return Model{LinkeTurbidity: DefaultLinkeTurbidity}
}

// At returns the clear-sky irradiance at t for the given WGS84 coordinates.
func (m Model) At(t time.Time, latitude, longitude float64) Irradiance {
	pos := sun.GetPosition(t, latitude, longitude)
	out := m.fromZenith(t, pos.Zenith)
	out.Time = t.UTC()
	return out
}

// Estimate evaluates the model for every timestamp.
func (m Model) Estimate(latitude, longitude float64, times []time.Time) []Irradiance {
	positions := sun.Positions(times, latitude, longitude)
	out := make([]Irradiance, len(times))
	for i, t := range times {
		out[i] = m.fromZenith(t, positions[i].Zenith)
		out[i].Time = t.UTC()
	}
	return out
}

func (m Model) fromZenith(t time.Time, zenith float64) Irradiance {
	out := Irradiance{Zenith: zenith}
	if zenith >= 90 {
		return out
	}

	tl := m.LinkeTurbidity
	if tl <= 0 {
		tl = DefaultLinkeTurbidity
	}
	alt := m.Altitude

	cosZ := math.Cos(degToRad(zenith))
	i0 := extraterrestrial(t)

	// Kasten-Young relative air mass scaled to site pressure
	amRel := 1.0 / (cosZ + 0.50572*math.Pow(96.07995-zenith, -1.6364))
	am := amRel * pressureRatio(alt)

	fh1 := math.Exp(-alt / 8000)
	fh2 := math.Exp(-alt / 1250)
	cg1 := 5.09e-5*alt + 0.868
	cg2 := 3.92e-5*alt + 0.0387

	ghi := cg1 * i0 * cosZ * math.Exp(-cg2*am*(fh1+fh2*(tl-1))) * math.Exp(0.01*math.Pow(am, 1.8))
	ghi = math.Max(ghi, 0)

	b := 0.664 + 0.163/fh1
	bnci := b * i0 * math.Exp(-0.09*am*(tl-1))

	bnci2 := (1 - (0.1-0.2*math.Exp(-tl))/(0.1+0.882/fh1)) / cosZ
	bnci2 = ghi * math.Min(math.Max(bnci2, 0), 1e20)

	dni := math.Min(bnci, bnci2)
	dhi := ghi - dni*cosZ

	out.GHI = ghi
	out.DNI = math.Max(dni, 0)
	out.DHI = math.Max(dhi, 0)
	return out
}

// extraterrestrial returns the top-of-atmosphere normal irradiance for the
// day of year of t, corrected for Earth-Sun distance.
func extraterrestrial(t time.Time) float64 {
	n := float64(t.UTC().YearDay())
	return solarConstant * (1 + 0.033*math.Cos(degToRad(360.0*(n-3)/365.0)))
}

// pressureRatio is the standard-atmosphere site pressure over sea level pressure.
func pressureRatio(altitude float64) float64 {
	return math.Pow(1-2.25577e-5*altitude, 5.25588)
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

// TimeGrid returns timestamps from start to end inclusive, every step.
func TimeGrid(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start.UTC(); !t.After(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}
