package pvmodel

import (
	"math"

	"github.com/devskill-org/pvforecast/series"
)

const stageTemperature = "panel_temperature"

// King 2004 open-rack glass/cell/polymer coefficients.
const (
	kingA = -3.47
	kingB = -0.0594

	// windProfileExponent extrapolates wind from the 10 m reference height.
	windProfileExponent = 0.1429
)

// ModuleTemperature estimates module temperature in °C from absorbed
// irradiance (W/m²), wind speed (m/s), module elevation (m) and air
// temperature (°C).
func ModuleTemperature(absorbed, wind, elevation, airTemp float64) float64 {
	windAtModule := math.Pow(elevation/10, windProfileExponent) * wind
	return absorbed*math.Exp(kingA+kingB*windAtModule) + airTemp
}

// PanelTemperature adds module_temp. Missing T or wind columns are filled
// from defaults. Without poa_ref_cor the stage is skipped. A row whose
// estimate is NaN gets its air temperature.
func PanelTemperature(s *series.Series, defaults Defaults) (*series.Series, StageResult) {
	if !s.Has(series.ColPOARefCor) {
		return s, skipped(stageTemperature, series.ColPOARefCor)
	}

	out := s.Clone()
	hasTemp := s.Has(series.ColAirTemp)
	hasWind := s.Has(series.ColWind)

	for i := range out.Rows {
		r := &out.Rows[i]
		if !hasTemp {
			r.AirTemp = defaults.AirTempC
		}
		if !hasWind {
			r.Wind = defaults.WindSpeedMS
		}

		tm := ModuleTemperature(r.POARefCor, r.Wind, defaults.ModuleElevationM, r.AirTemp)
		if math.IsNaN(tm) {
			tm = r.AirTemp
		}
		r.ModuleTemp = tm
	}

	out.Columns = out.Columns.With(series.ColAirTemp, series.ColWind, series.ColModuleTemp)
	return out, applied(stageTemperature)
}
