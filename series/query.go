package series

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/devskill-org/pvforecast/utils"
)

// Slice returns the rows whose time lies in [start, end], both ends inclusive.
// Missing timestamps are simply absent; nothing is interpolated.
func Slice(s *Series, start, end time.Time) *Series {
	out := &Series{Columns: s.Columns}
	if s.Len() == 0 || end.Before(start) {
		return out
	}

	lo, _ := s.Index(start)
	for i := lo; i < len(s.Rows); i++ {
		if s.Rows[i].Time.After(end.UTC()) {
			break
		}
		out.Rows = append(out.Rows, s.Rows[i])
	}
	return out
}

// NearestRow rounds t down to the hh:30 grid point of its hour and returns
// the row stored there. The second result is false when that slot is absent.
func NearestRow(s *Series, t time.Time) (Row, bool) {
	return s.At(utils.HalfPastHour(t))
}

// Brackets returns the hh:30 grid points t1 <= t < t2 surrounding t, with
// t2 = t1 + 60 min.
func Brackets(t time.Time) (t1, t2 time.Time) {
	t = t.UTC()
	half := utils.HalfPastHour(t)
	if t.Minute() < 30 {
		return half.Add(-time.Hour), half
	}
	return half, half.Add(time.Hour)
}

// Weights returns the linear interpolation weights of t between t1 and t2:
// w1 = 1 - (t-t1)/(t2-t1) and w2 = 1 - (t2-t)/(t2-t1). They sum to 1.
func Weights(t, t1, t2 time.Time) (w1, w2 float64) {
	total := t2.Sub(t1).Seconds()
	w1 = 1 - t.Sub(t1).Seconds()/total
	w2 = 1 - t2.Sub(t).Seconds()/total
	return w1, w2
}

// Interpolate linearly interpolates every numeric column between the two
// hh:30 rows bracketing t. The series must be hourly on the half hour.
//
// When either bracketing row is missing, for example because t lies outside
// the forecast horizon, the second result is false. This is the normal
// "no forecast" outcome and not an error.
func Interpolate(s *Series, t time.Time) (Row, bool) {
	t = t.UTC()
	t1, t2 := Brackets(t)

	row1, ok1 := s.At(t1)
	row2, ok2 := s.At(t2)
	if !ok1 || !ok2 {
		return Row{}, false
	}

	w1, w2 := Weights(t, t1, t2)

	// grid points return the stored row untouched
	switch {
	case w2 == 0:
		row1.Time = t
		return row1, true
	case w1 == 0:
		row2.Time = t
		return row2, true
	}

	v := make([]float64, numericColumns)
	floats.ScaleTo(v, w1, row1.Values())
	floats.AddScaled(v, w2, row2.Values())

	out := Row{Time: t}
	out.SetValues(v)
	if s.Has(ColLocalTime) {
		out.LocalTime = t.In(row1.LocalTime.Location())
	}
	return out, true
}

// AddLocalTime returns a copy of s with LocalTime set from each row's index
// in loc.
func AddLocalTime(s *Series, loc *time.Location) *Series {
	out := s.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Rows {
		out.Rows[i].LocalTime = out.Rows[i].Time.In(loc)
	}
	out.Columns = out.Columns.With(ColLocalTime)
	return out
}
