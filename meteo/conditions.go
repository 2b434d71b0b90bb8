package meteo

import (
	"math"
	"time"
)

// maxStepDistance bounds how far a forecast step may lie from a requested
// instant and still be used for it. MET steps are hourly for the first days
// and six-hourly later.
const maxStepDistance = 3 * time.Hour

// stepAt returns the time step closest to target, or nil when none lies
// within maxStepDistance.
func (f *METJSONForecast) stepAt(target time.Time) *ForecastTimeStep {
	if f == nil || f.Properties == nil || len(f.Properties.Timeseries) == 0 {
		return nil
	}

	var closest *ForecastTimeStep
	minDiff := time.Duration(1<<63 - 1)

	for i := range f.Properties.Timeseries {
		step := &f.Properties.Timeseries[i]
		diff := step.Time.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = step
		}
	}

	if minDiff > maxStepDistance {
		return nil
	}
	return closest
}

// Conditions returns the ambient conditions at each of times, taken from the
// closest forecast step. Instants with no nearby step get NaN values.
func (f *METJSONForecast) Conditions(times []time.Time) []Conditions {
	out := make([]Conditions, len(times))
	for i, t := range times {
		c := Conditions{
			Time:       t.UTC(),
			AirTemp:    math.NaN(),
			Wind:       math.NaN(),
			CloudCover: math.NaN(),
		}
		if d := f.stepAt(t).details(); d != nil {
			c.AirTemp = value(d.AirTemperature)
			c.Wind = value(d.WindSpeed)
			c.CloudCover = value(d.CloudAreaFraction) / 100
		}
		out[i] = c
	}
	return out
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
