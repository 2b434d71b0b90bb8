package pvmodel

import (
	"math"

	"github.com/devskill-org/pvforecast/series"
	"github.com/devskill-org/pvforecast/sun"
)

const stageTranspose = "transpose"

// TransposedColumns are added by Transpose.
var TransposedColumns = series.Set(
	series.ColZenith, series.ColSolarAzimuth, series.ColAOI,
	series.ColPOADirect, series.ColPOASkyDiffuse, series.ColPOAGroundDiffuse, series.ColPOAGlobal,
)

// Transpose projects horizontal irradiance onto the panel plane using the
// isotropic sky model. Rows without a finite albedo use defaults.Albedo.
func Transpose(s *series.Series, site Site, defaults Defaults) (*series.Series, StageResult) {
	if missing, ok := requireColumns(s, series.ColDNI, series.ColDHI, series.ColGHI); !ok {
		return s, skipped(stageTranspose, missing)
	}

	out := s.Clone()
	hasAlbedo := s.Has(series.ColAlbedo)
	tilt := site.Tilt * math.Pi / 180
	skyView := (1 + math.Cos(tilt)) / 2
	groundView := (1 - math.Cos(tilt)) / 2

	positions := sun.Positions(out.Times(), site.Latitude, site.Longitude)
	for i := range out.Rows {
		r := &out.Rows[i]
		pos := positions[i]
		r.Zenith = pos.Zenith
		r.SolarAzimuth = pos.Azimuth
		r.AOI = AngleOfIncidence(site.Tilt, site.Azimuth, pos.Zenith, pos.Azimuth)

		if !hasAlbedo || math.IsNaN(r.Albedo) {
			r.Albedo = defaults.Albedo
		}

		r.POADirect = math.Max(0, r.DNI*math.Cos(r.AOI*math.Pi/180))
		r.POASkyDiffuse = r.DHI * skyView
		r.POAGroundDiffuse = r.GHI * r.Albedo * groundView
		r.POAGlobal = r.POADirect + r.POASkyDiffuse + r.POAGroundDiffuse
	}

	out.Columns = out.Columns.With(series.ColAlbedo) | TransposedColumns
	return out, applied(stageTranspose)
}

// AngleOfIncidence returns the angle in degrees between the sun and the
// panel normal. All inputs are degrees.
func AngleOfIncidence(tilt, panelAzimuth, zenith, solarAzimuth float64) float64 {
	const rad = math.Pi / 180
	cosAOI := math.Cos(zenith*rad)*math.Cos(tilt*rad) +
		math.Sin(zenith*rad)*math.Sin(tilt*rad)*math.Cos((solarAzimuth-panelAzimuth)*rad)
	cosAOI = math.Max(-1, math.Min(1, cosAOI))
	return math.Acos(cosAOI) / rad
}
