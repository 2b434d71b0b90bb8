package pvmodel

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/devskill-org/pvforecast/clearsky"
	"github.com/devskill-org/pvforecast/series"
	"github.com/devskill-org/pvforecast/sun"
)

// accumulationPeriod is the spacing of weather-model accumulator samples.
const accumulationPeriod = time.Hour

// RawRow is one weather-model sample. Radiation accumulators are in J/m²
// since model start; CloudCover is a fraction in [0,1].
type RawRow struct {
	Time       time.Time
	AirTemp    float64
	GHIAccum   float64
	NetSWAccum float64
	DirHIAccum float64
	Wind       float64
	CloudCover float64
}

// NormalizedColumns are the columns produced by Normalize.
var NormalizedColumns = series.Set(
	series.ColDNI, series.ColDHI, series.ColGHI, series.ColDirHI,
	series.ColAlbedo, series.ColAirTemp, series.ColWind, series.ColCloudCover,
)

// Normalize converts hourly accumulator samples into instantaneous
// irradiance.
//
// Each sample at T holds the mean rate over (T-60min, T], so rows are indexed
// at T-30min. The first sample has no predecessor to difference against and
// produces no row. Albedo outside [0,1] is replaced by the mean of the valid
// albedo values in the same batch; a batch without valid albedo is left NaN.
//
// DNI is DirHI / cos(zenith) with the zenith taken at the sample time. It is
// not guarded near the horizon; negative results are clamped to 0.
func Normalize(raw []RawRow, latitude, longitude float64) *series.Series {
	if len(raw) < 2 {
		return series.New(NormalizedColumns, nil)
	}

	rows := make([]series.Row, 0, len(raw)-1)
	seconds := accumulationPeriod.Seconds()

	for i := 1; i < len(raw); i++ {
		prev, cur := raw[i-1], raw[i]

		ghi := (cur.GHIAccum - prev.GHIAccum) / seconds
		netSW := (cur.NetSWAccum - prev.NetSWAccum) / seconds
		dirHI := (cur.DirHIAccum - prev.DirHIAccum) / seconds

		albedo := (ghi - netSW) / ghi
		if !(albedo >= 0 && albedo <= 1) {
			albedo = math.NaN()
		}

		zenith := sun.GetPosition(cur.Time, latitude, longitude).Zenith
		dni := dirHI / math.Cos(zenith*math.Pi/180)

		rows = append(rows, series.Row{
			Time:       cur.Time.Add(-accumulationPeriod / 2),
			SampleTime: cur.Time.UTC(),
			DNI:        clampNonNegative(dni),
			DHI:        clampNonNegative(ghi - dirHI),
			GHI:        clampNonNegative(ghi),
			DirHI:      dirHI,
			Albedo:     albedo,
			AirTemp:    cur.AirTemp,
			Wind:       cur.Wind,
			CloudCover: cur.CloudCover,
		})
	}

	fillAlbedo(rows)
	return series.New(NormalizedColumns, rows)
}

// fillAlbedo replaces NaN albedo with the mean of the valid values.
func fillAlbedo(rows []series.Row) {
	valid := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(r.Albedo) {
			valid = append(valid, r.Albedo)
		}
	}
	if len(valid) == 0 || len(valid) == len(rows) {
		return
	}

	mean := stat.Mean(valid, nil)
	for i := range rows {
		if math.IsNaN(rows[i].Albedo) {
			rows[i].Albedo = mean
		}
	}
}

// clampNonNegative floors v at 0 and turns -0 into +0. NaN passes through.
func clampNonNegative(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v
}

// FromIrradiance builds an irradiance series from clear-sky model output.
func FromIrradiance(irr []clearsky.Irradiance) *series.Series {
	rows := make([]series.Row, len(irr))
	for i, v := range irr {
		rows[i] = series.Row{
			Time:       v.Time,
			SampleTime: v.Time.UTC(),
			DNI:        v.DNI,
			DHI:        v.DHI,
			GHI:        v.GHI,
		}
	}
	return series.New(series.Set(series.ColDNI, series.ColDHI, series.ColGHI), rows)
}
