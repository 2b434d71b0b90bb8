package pvmodel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devskill-org/pvforecast/series"
)

const (
	helsinkiLat = 60.17
	helsinkiLon = 24.94
)

// accumulate builds raw rows from per-hour mean rates.
func accumulate(start time.Time, ghi, netSW, dirHI []float64) []RawRow {
	rows := []RawRow{{Time: start, AirTemp: 15, Wind: 3, CloudCover: 0.5}}
	var g, n, d float64
	for i := range ghi {
		g += ghi[i] * 3600
		n += netSW[i] * 3600
		d += dirHI[i] * 3600
		rows = append(rows, RawRow{
			Time:       start.Add(time.Duration(i+1) * time.Hour),
			AirTemp:    15 + float64(i),
			GHIAccum:   g,
			NetSWAccum: n,
			DirHIAccum: d,
			Wind:       3,
			CloudCover: 0.5,
		})
	}
	return rows
}

func TestNormalize_DifferencesAndShifts(t *testing.T) {
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	raw := accumulate(start,
		[]float64{400, 500, 600},
		[]float64{300, 375, 450},
		[]float64{200, 250, 300},
	)

	s := Normalize(raw, helsinkiLat, helsinkiLon)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, NormalizedColumns, s.Columns)

	first := s.Rows[0]
	assert.Equal(t, time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC), first.Time)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), first.SampleTime)
	assert.InDelta(t, 400, first.GHI, 1e-9)
	assert.InDelta(t, 200, first.DirHI, 1e-9)
	assert.InDelta(t, 200, first.DHI, 1e-9)
	assert.InDelta(t, 0.25, first.Albedo, 1e-9)
	assert.Equal(t, 15.0, first.AirTemp)
	assert.Equal(t, 0.5, first.CloudCover)
	// DNI >= DirHI because cos(zenith) <= 1
	assert.Greater(t, first.DNI, first.DirHI)
}

func TestNormalize_ClampsNegativeIrradiance(t *testing.T) {
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	// accumulators that run backwards produce negative rates
	raw := accumulate(start,
		[]float64{-5, 0, 100},
		[]float64{-5, 0, 80},
		[]float64{-10, 0, 150},
	)

	s := Normalize(raw, helsinkiLat, helsinkiLon)
	require.Equal(t, 3, s.Len())
	for _, r := range s.Rows {
		assert.GreaterOrEqual(t, r.DNI, 0.0)
		assert.GreaterOrEqual(t, r.DHI, 0.0)
		assert.GreaterOrEqual(t, r.GHI, 0.0)
		assert.False(t, math.Signbit(r.GHI), "negative zero at %v", r.Time)
		assert.False(t, math.Signbit(r.DHI), "negative zero at %v", r.Time)
	}
	// DHI = 100 - 150 < 0
	assert.Equal(t, 0.0, s.Rows[2].DHI)
}

func TestNormalize_AlbedoFilledWithSeriesMean(t *testing.T) {
	start := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	raw := accumulate(start,
		[]float64{400, 0, 500, 600},
		[]float64{360, 0, 400, 1200},
		[]float64{100, 0, 100, 100},
	)

	s := Normalize(raw, helsinkiLat, helsinkiLon)
	require.Equal(t, 4, s.Len())

	// 0.1 and 0.2 are valid; 0/0 and -1 are not
	assert.InDelta(t, 0.1, s.Rows[0].Albedo, 1e-9)
	assert.InDelta(t, 0.15, s.Rows[1].Albedo, 1e-9)
	assert.InDelta(t, 0.2, s.Rows[2].Albedo, 1e-9)
	assert.InDelta(t, 0.15, s.Rows[3].Albedo, 1e-9)

	for _, r := range s.Rows {
		assert.GreaterOrEqual(t, r.Albedo, 0.0)
		assert.LessOrEqual(t, r.Albedo, 1.0)
	}
}

func TestNormalize_NoValidAlbedoStaysNaN(t *testing.T) {
	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	raw := accumulate(start, []float64{0, 0}, []float64{0, 0}, []float64{0, 0})

	s := Normalize(raw, helsinkiLat, helsinkiLon)
	require.Equal(t, 2, s.Len())
	for _, r := range s.Rows {
		assert.True(t, math.IsNaN(r.Albedo))
	}
}

func TestNormalize_TooFewSamples(t *testing.T) {
	assert.Equal(t, 0, Normalize(nil, helsinkiLat, helsinkiLon).Len())
	one := []RawRow{{Time: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)}}
	assert.Equal(t, 0, Normalize(one, helsinkiLat, helsinkiLon).Len())
}

func TestClampNonNegative(t *testing.T) {
	assert.Equal(t, 0.0, clampNonNegative(-3))
	assert.False(t, math.Signbit(clampNonNegative(math.Copysign(0, -1))))
	assert.Equal(t, 2.5, clampNonNegative(2.5))
	assert.True(t, math.IsNaN(clampNonNegative(math.NaN())))
}

func TestFromIrradiance(t *testing.T) {
	s := FromIrradiance(nil)
	assert.True(t, s.Has(series.ColDNI))
	assert.False(t, s.Has(series.ColAlbedo))
	assert.Equal(t, 0, s.Len())
}
