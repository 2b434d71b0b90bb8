// Package sun computes solar geometry for a site.
package sun

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Position is the solar position seen from a site, in degrees.
type Position struct {
	// Zenith is the apparent zenith angle, corrected for atmospheric refraction.
	Zenith float64
	// Azimuth is measured clockwise from north: 90 east, 180 south.
	Azimuth float64
	// Elevation is the apparent elevation above the horizon (90 - Zenith).
	Elevation float64
}

// GetPosition returns the apparent solar position at t for the given WGS84 coordinates.
func GetPosition(t time.Time, latitude, longitude float64) Position {
	pos := suncalc.GetPosition(t.UTC(), latitude, longitude)

	// suncalc measures azimuth from south towards west
	azimuth := math.Mod(pos.Azimuth*180/math.Pi+180, 360)
	if azimuth < 0 {
		azimuth += 360
	}

	elevation := pos.Altitude*180/math.Pi + refraction(pos.Altitude*180/math.Pi)

	return Position{
		Zenith:    90 - elevation,
		Azimuth:   azimuth,
		Elevation: elevation,
	}
}

// Positions evaluates GetPosition for every timestamp in times.
func Positions(times []time.Time, latitude, longitude float64) []Position {
	out := make([]Position, len(times))
	for i, t := range times {
		out[i] = GetPosition(t, latitude, longitude)
	}
	return out
}

// refraction returns the Saemundsson refraction correction in degrees for a
// geometric elevation given in degrees.
func refraction(elevation float64) float64 {
	if elevation < -1 {
		return 0
	}
	arg := (elevation + 10.3/(elevation+5.11)) * math.Pi / 180
	return 1.02 / math.Tan(arg) / 60
}

// IsDaytime reports whether t falls between sunrise and sunset at the site.
func IsDaytime(t time.Time, latitude, longitude float64) bool {
	times := suncalc.GetTimes(t, latitude, longitude)
	sunrise := times["sunrise"].Value
	sunset := times["sunset"].Value
	if sunrise.IsZero() || sunset.IsZero() {
		// polar day or night
		return GetPosition(t, latitude, longitude).Elevation > 0
	}
	return !t.Before(sunrise) && !t.After(sunset)
}
