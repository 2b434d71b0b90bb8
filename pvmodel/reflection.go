package pvmodel

import (
	"math"

	"github.com/devskill-org/pvforecast/series"
)

const stageReflection = "reflection"

// angularLoss is the Martin & Ruiz angular loss coefficient for glass
// covered c-Si modules.
const angularLoss = 0.159

// ReflectionCorrect applies Martin & Ruiz (2001) incidence angle modifiers to
// each POA component and stores their sum as poa_ref_cor.
func ReflectionCorrect(s *series.Series, site Site) (*series.Series, StageResult) {
	if missing, ok := requireColumns(s,
		series.ColAOI, series.ColPOADirect, series.ColPOASkyDiffuse, series.ColPOAGroundDiffuse,
	); !ok {
		return s, skipped(stageReflection, missing)
	}

	out := s.Clone()
	skyIAM, groundIAM := DiffuseIAM(site.Tilt)

	for i := range out.Rows {
		r := &out.Rows[i]
		r.POADirectRefCor = r.POADirect * DirectIAM(r.AOI)
		r.POASkyDiffuseRefCor = r.POASkyDiffuse * skyIAM
		r.POAGroundDiffuseRefCor = r.POAGroundDiffuse * groundIAM
		r.POARefCor = r.POADirectRefCor + r.POASkyDiffuseRefCor + r.POAGroundDiffuseRefCor
	}

	out.Columns = out.Columns.With(
		series.ColPOADirectRefCor,
		series.ColPOASkyDiffuseRefCor,
		series.ColPOAGroundDiffuseRefCor,
		series.ColPOARefCor,
	)
	return out, applied(stageReflection)
}

// DirectIAM is the beam incidence angle modifier for an angle of incidence
// in degrees. It is 1 at normal incidence and 0 from 90 degrees on.
func DirectIAM(aoi float64) float64 {
	if aoi >= 90 || math.IsNaN(aoi) {
		return 0
	}
	cosAOI := math.Cos(aoi * math.Pi / 180)
	return (1 - math.Exp(-cosAOI/angularLoss)) / (1 - math.Exp(-1/angularLoss))
}

// DiffuseIAM returns the sky and ground diffuse modifiers for a panel tilt in
// degrees. A horizontal panel sees no ground so its ground modifier is 0.
func DiffuseIAM(tilt float64) (sky, ground float64) {
	const (
		c1 = 4 / (3 * math.Pi)
		c2 = angularLoss/2 - 0.154
	)
	beta := tilt * math.Pi / 180
	sinBeta := math.Sin(beta)
	cosBeta := math.Cos(beta)

	modifier := func(trig float64) float64 {
		return 1 - math.Exp(-(c1+c2*trig)*trig/angularLoss)
	}

	sky = modifier(sinBeta + (math.Pi-beta-sinBeta)/(1+cosBeta))
	if 1-cosBeta < 1e-12 {
		return sky, 0
	}
	ground = modifier(sinBeta + (beta-sinBeta)/(1-cosBeta))
	return sky, ground
}
