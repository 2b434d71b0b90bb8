package series

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice_InclusiveBothEnds(t *testing.T) {
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s := hourly(day, 24)

	got := Slice(s, day, day.Add(3*time.Hour))

	require.Equal(t, 4, got.Len())
	for i, r := range got.Rows {
		assert.Equal(t, day.Add(time.Duration(i)*time.Hour), r.Time)
	}
	assert.Equal(t, s.Columns, got.Columns)
}

func TestSlice_Edges(t *testing.T) {
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s := hourly(day, 6)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"between grid points", day.Add(30 * time.Minute), day.Add(150 * time.Minute), 2},
		{"before series", day.Add(-5 * time.Hour), day.Add(-time.Hour), 0},
		{"after series", day.Add(10 * time.Hour), day.Add(12 * time.Hour), 0},
		{"covers everything", day.Add(-time.Hour), day.Add(24 * time.Hour), 6},
		{"reversed", day.Add(3 * time.Hour), day, 0},
		{"single point", day.Add(2 * time.Hour), day.Add(2 * time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slice(s, tt.start, tt.end).Len())
		})
	}
}

func TestNearestRow(t *testing.T) {
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	s := hourly(start, 4) // 10:30 .. 13:30

	row, ok := NearestRow(s, time.Date(2024, 6, 10, 12, 45, 21, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC), row.Time)

	// 12:10 still rounds to 12:30 of the containing hour
	row, ok = NearestRow(s, time.Date(2024, 6, 10, 12, 10, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 12.0, row.AirTemp)

	_, ok = NearestRow(s, time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestWeights_SumToOne(t *testing.T) {
	t1 := time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	for m := 0; m <= 60; m += 7 {
		w1, w2 := Weights(t1.Add(time.Duration(m)*time.Minute), t1, t2)
		assert.InDelta(t, 1.0, w1+w2, 1e-12)
		assert.InDelta(t, 1-float64(m)/60, w1, 1e-12)
	}
}

func TestBrackets(t *testing.T) {
	t1, t2 := Brackets(time.Date(2024, 6, 10, 12, 10, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 10, 11, 30, 0, 0, time.UTC), t1)
	assert.Equal(t, time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC), t2)

	t1, t2 = Brackets(time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC), t1)
	assert.Equal(t, time.Date(2024, 6, 10, 13, 30, 0, 0, time.UTC), t2)
}

func TestInterpolate_Midpoint(t *testing.T) {
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	s := hourly(start, 4)

	at := time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)
	row, ok := Interpolate(s, at)
	require.True(t, ok)

	assert.Equal(t, at, row.Time)
	assert.InDelta(t, 10.5, row.AirTemp, 1e-9)
	assert.InDelta(t, 0.05, row.Output, 1e-9)
	assert.InDelta(t, 21.0, row.ModuleTemp, 1e-9)
	assert.InDelta(t, 2.0, row.Wind, 1e-9)
}

func TestInterpolate_QuarterPoint(t *testing.T) {
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	s := hourly(start, 4)

	row, ok := Interpolate(s, time.Date(2024, 6, 10, 12, 45, 0, 0, time.UTC))
	require.True(t, ok)

	// 12:45 is a quarter of the way from 12:30 (T=12) to 13:30 (T=13)
	assert.InDelta(t, 12.25, row.AirTemp, 1e-9)
}

func TestInterpolate_IdempotentAtGridPoint(t *testing.T) {
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	s := hourly(start, 4)

	grid := time.Date(2024, 6, 10, 11, 30, 0, 0, time.UTC)
	row, ok := Interpolate(s, grid)
	require.True(t, ok)

	stored, _ := s.At(grid)
	assert.Equal(t, stored, row)
}

func TestInterpolate_OutsideHorizon(t *testing.T) {
	start := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	s := hourly(start, 4)

	_, ok := Interpolate(s, time.Date(2012, 6, 10, 12, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	// last grid point has no right-hand neighbour
	_, ok = Interpolate(s, time.Date(2024, 6, 10, 13, 40, 0, 0, time.UTC))
	assert.False(t, ok)

	_, ok = Interpolate(&Series{}, start)
	assert.False(t, ok)
}

func TestInterpolate_RepeatedCallsAreIndependent(t *testing.T) {
	start := time.Date(2024, 6, 10, 0, 30, 0, 0, time.UTC)
	s := hourly(start, 24)
	before := s.Clone()

	query := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		at := query.Add(time.Duration(i) * 90 * time.Minute)
		row, ok := Interpolate(s, at)

		t1, t2 := Brackets(at)
		_, has1 := s.At(t1)
		_, has2 := s.At(t2)
		require.Equal(t, has1 && has2, ok, "call %d at %v", i, at)
		if ok {
			w1, _ := Weights(at, t1, t2)
			r1, _ := s.At(t1)
			r2, _ := s.At(t2)
			assert.InDelta(t, w1*r1.AirTemp+(1-w1)*r2.AirTemp, row.AirTemp, 1e-9)
		}
	}

	assert.Equal(t, before, s, "interpolation must not mutate the series")
}

func TestAddLocalTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	s := hourly(time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC), 2)
	out := AddLocalTime(s, loc)

	assert.True(t, out.Has(ColLocalTime))
	assert.False(t, s.Has(ColLocalTime))
	assert.Equal(t, 13, out.Rows[0].LocalTime.Hour())
	assert.True(t, out.Rows[0].LocalTime.Equal(out.Rows[0].Time))
}
