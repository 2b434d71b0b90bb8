// Package series defines the time-indexed forecast record shared by every
// pipeline stage, and the interval, nearest-row and interpolation queries
// over it.
//
// A Series carries an explicit column set. A stage that needs a column checks
// Has before reading it; values of absent columns are meaningless.
package series

import (
	"bytes"
	"encoding/json"
	"math"
	"math/bits"
	"sort"
	"time"
)

// Column identifies one numeric field of a Row.
type Column uint32

// Columns in their canonical output order.
const (
	ColDNI Column = 1 << iota
	ColDHI
	ColGHI
	ColDirHI
	ColAlbedo
	ColAirTemp
	ColWind
	ColCloudCover
	ColZenith
	ColSolarAzimuth
	ColAOI
	ColPOADirect
	ColPOASkyDiffuse
	ColPOAGroundDiffuse
	ColPOAGlobal
	ColPOADirectRefCor
	ColPOASkyDiffuseRefCor
	ColPOAGroundDiffuseRefCor
	ColPOARefCor
	ColModuleTemp
	ColOutput

	numericColumns = iota
)

// ColLocalTime marks a populated Row.LocalTime. It is not numeric.
const ColLocalTime Column = 1 << numericColumns

var columnNames = [...]string{
	"dni", "dhi", "ghi", "dir_hi", "albedo", "T", "wind", "cloud_cover",
	"zenith", "azimuth", "aoi",
	"poa_direct", "poa_sky_diffuse", "poa_ground_diffuse", "poa_global",
	"poa_ref_cor_direct", "poa_ref_cor_sky_diffuse", "poa_ref_cor_ground_diffuse", "poa_ref_cor",
	"module_temp", "output",
	"local_time",
}

// Name returns the column's output name, e.g. "poa_ref_cor".
func (c Column) Name() string {
	if c == 0 || c&(c-1) != 0 {
		return ""
	}
	i := bits.TrailingZeros32(uint32(c))
	if i >= len(columnNames) {
		return ""
	}
	return columnNames[i]
}

// ColumnSet is a set of columns.
type ColumnSet uint32

// Set builds a ColumnSet from individual columns.
func Set(cols ...Column) ColumnSet {
	var s ColumnSet
	for _, c := range cols {
		s |= ColumnSet(c)
	}
	return s
}

// Has reports whether every column in c is in the set.
func (s ColumnSet) Has(c Column) bool {
	return s&ColumnSet(c) == ColumnSet(c)
}

// With returns the set plus cols.
func (s ColumnSet) With(cols ...Column) ColumnSet {
	return s | Set(cols...)
}

// Intersect returns the columns present in both sets.
func (s ColumnSet) Intersect(o ColumnSet) ColumnSet {
	return s & o
}

// Columns lists the set members in canonical order.
func (s ColumnSet) Columns() []Column {
	var out []Column
	for i := range columnNames {
		c := Column(1 << i)
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names lists the member names in canonical order.
func (s ColumnSet) Names() []string {
	cols := s.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name()
	}
	return out
}

// Row is one simulation instant. Irradiance is in W/m², temperatures in °C,
// wind in m/s, angles in degrees and output in kW.
type Row struct {
	// Time is the simulation instant in UTC and the series index.
	Time time.Time
	// SampleTime is the provider timestamp the row was derived from.
	SampleTime time.Time
	LocalTime  time.Time

	DNI        float64
	DHI        float64
	GHI        float64
	DirHI      float64
	Albedo     float64
	AirTemp    float64
	Wind       float64
	CloudCover float64

	Zenith       float64
	SolarAzimuth float64
	AOI          float64

	POADirect        float64
	POASkyDiffuse    float64
	POAGroundDiffuse float64
	POAGlobal        float64

	POADirectRefCor        float64
	POASkyDiffuseRefCor    float64
	POAGroundDiffuseRefCor float64
	POARefCor              float64

	ModuleTemp float64
	Output     float64
}

func (r *Row) fields() [numericColumns]*float64 {
	return [numericColumns]*float64{
		&r.DNI, &r.DHI, &r.GHI, &r.DirHI, &r.Albedo, &r.AirTemp, &r.Wind, &r.CloudCover,
		&r.Zenith, &r.SolarAzimuth, &r.AOI,
		&r.POADirect, &r.POASkyDiffuse, &r.POAGroundDiffuse, &r.POAGlobal,
		&r.POADirectRefCor, &r.POASkyDiffuseRefCor, &r.POAGroundDiffuseRefCor, &r.POARefCor,
		&r.ModuleTemp, &r.Output,
	}
}

// Get returns the value of a numeric column.
func (r Row) Get(c Column) float64 {
	i := bits.TrailingZeros32(uint32(c))
	if i >= numericColumns {
		return math.NaN()
	}
	return *r.fields()[i]
}

// Set assigns a numeric column.
func (r *Row) Set(c Column, v float64) {
	i := bits.TrailingZeros32(uint32(c))
	if i >= numericColumns {
		return
	}
	*r.fields()[i] = v
}

// Values returns every numeric field in canonical column order.
func (r Row) Values() []float64 {
	out := make([]float64, numericColumns)
	for i, p := range r.fields() {
		out[i] = *p
	}
	return out
}

// SetValues is the inverse of Values.
func (r *Row) SetValues(v []float64) {
	for i, p := range r.fields() {
		if i < len(v) {
			*p = v[i]
		}
	}
}

// Series is a strictly increasing, UTC-indexed sequence of rows.
type Series struct {
	Rows    []Row
	Columns ColumnSet
}

// New returns a series over rows with the given columns. Row times are
// normalized to UTC.
func New(cols ColumnSet, rows []Row) *Series {
	for i := range rows {
		rows[i].Time = rows[i].Time.UTC()
	}
	return &Series{Rows: rows, Columns: cols}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Has reports whether column c is present.
func (s *Series) Has(c Column) bool {
	return s != nil && s.Columns.Has(c)
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	rows := make([]Row, len(s.Rows))
	copy(rows, s.Rows)
	return &Series{Rows: rows, Columns: s.Columns}
}

// Times returns the index.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, s.Len())
	for i := range out {
		out[i] = s.Rows[i].Time
	}
	return out
}

// Index returns the position of the row at exactly t.
func (s *Series) Index(t time.Time) (int, bool) {
	if s.Len() == 0 {
		return 0, false
	}
	t = t.UTC()
	i := sort.Search(len(s.Rows), func(i int) bool {
		return !s.Rows[i].Time.Before(t)
	})
	if i < len(s.Rows) && s.Rows[i].Time.Equal(t) {
		return i, true
	}
	return i, false
}

// At returns the row at exactly t.
func (s *Series) At(t time.Time) (Row, bool) {
	i, ok := s.Index(t)
	if !ok {
		return Row{}, false
	}
	return s.Rows[i], true
}

// Project returns a copy restricted to the columns in cols.
func (s *Series) Project(cols ColumnSet) *Series {
	out := s.Clone()
	if out != nil {
		out.Columns = out.Columns.Intersect(cols)
	}
	return out
}

// Column returns the values of c for every row.
func (s *Series) Column(c Column) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Rows[i].Get(c)
	}
	return out
}

// MarshalJSON encodes the series as an array of objects holding "time" and
// the present columns. Non-finite values become null.
func (s *Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range s.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := s.Rows[i].marshal(s.Columns)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalRow encodes a single row with the given columns in the same shape
// as one element of Series.MarshalJSON.
func MarshalRow(r Row, cols ColumnSet) ([]byte, error) {
	return r.marshal(cols)
}

func (r Row) marshal(cols ColumnSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	ts, err := json.Marshal(r.Time.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	buf.Write(ts)

	for _, c := range cols.Columns() {
		buf.WriteByte(',')
		name, _ := json.Marshal(c.Name())
		buf.Write(name)
		buf.WriteByte(':')

		if c == ColLocalTime {
			lt, err := json.Marshal(r.LocalTime.Format(time.RFC3339))
			if err != nil {
				return nil, err
			}
			buf.Write(lt)
			continue
		}

		v := r.Get(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
