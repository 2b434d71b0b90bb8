package pvmodel

import (
	"math"

	"github.com/devskill-org/pvforecast/series"
)

const stageOutput = "output"

// Huld et al. (2010) coefficients for crystalline silicon.
const (
	huldK1 = -0.017237
	huldK2 = -0.040465
	huldK3 = -0.004702
	huldK4 = 0.000149
	huldK5 = 0.000170
	huldK6 = 0.000005

	stcIrradiance  = 1000.0
	stcTemperature = 25.0
)

// Power returns the DC output in kW of a system rated ratedKW under standard
// test conditions, for absorbed irradiance in W/m² and module temperature in
// °C. The result is never negative.
func Power(ratedKW, absorbed, moduleTemp float64) float64 {
	g := absorbed / stcIrradiance
	if !(g > 0) {
		return 0
	}
	t := moduleTemp - stcTemperature
	lg := math.Log(g)

	efficiency := 1 + huldK1*lg + huldK2*lg*lg + huldK3*t + huldK4*t*lg + huldK5*t*lg*lg + huldK6*t*t
	p := ratedKW * g * efficiency
	if !(p > 0) {
		return 0
	}
	return p
}

// Output adds the output column. It needs poa_ref_cor and module_temp.
func Output(s *series.Series, ratedKW float64) (*series.Series, StageResult) {
	if missing, ok := requireColumns(s, series.ColPOARefCor, series.ColModuleTemp); !ok {
		return s, skipped(stageOutput, missing)
	}

	out := s.Clone()
	for i := range out.Rows {
		r := &out.Rows[i]
		r.Output = Power(ratedKW, r.POARefCor, r.ModuleTemp)
	}
	out.Columns = out.Columns.With(series.ColOutput)
	return out, applied(stageOutput)
}
