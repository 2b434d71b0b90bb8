// Package pvmodel turns irradiance series into PV power estimates.
//
// The stages run in a fixed order: Transpose, ReflectionCorrect,
// PanelTemperature and Output. Each stage is a pure function of its input
// series and the site parameters; it returns a new series and never mutates
// its input. Normalize prepares weather-model rows for the first stage.
package pvmodel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/devskill-org/pvforecast/series"
)

// Site describes the panel installation.
type Site struct {
	Latitude  float64
	Longitude float64
	// Tilt is the panel angle from horizontal in degrees, 0..90.
	Tilt float64
	// Azimuth is the panel facing in degrees clockwise from north, 0..360.
	Azimuth      float64
	RatedPowerKW float64
}

// Defaults replace missing inputs.
type Defaults struct {
	Albedo           float64
	AirTempC         float64
	WindSpeedMS      float64
	ModuleElevationM float64
}

// DefaultDefaults returns the stock substitutes for missing inputs.
func DefaultDefaults() Defaults {
	return Defaults{
		Albedo:           0.25,
		AirTempC:         20,
		WindSpeedMS:      2,
		ModuleElevationM: 7,
	}
}

// BasicColumns are kept when extended output is off.
var BasicColumns = series.Set(
	series.ColAirTemp,
	series.ColWind,
	series.ColCloudCover,
	series.ColModuleTemp,
	series.ColOutput,
)

// StageStatus tells whether a stage processed the series.
type StageStatus int

const (
	StageApplied StageStatus = iota
	StageSkipped
)

func (s StageStatus) String() string {
	switch s {
	case StageApplied:
		return "applied"
	case StageSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("StageStatus(%d)", int(s))
	}
}

// StageResult reports the outcome of one stage. A skipped stage returned its
// input unchanged because Missing was not present.
type StageResult struct {
	Stage   string
	Status  StageStatus
	Missing series.Column
}

// Skipped reports whether the stage was a passthrough.
func (r StageResult) Skipped() bool {
	return r.Status == StageSkipped
}

func applied(stage string) StageResult {
	return StageResult{Stage: stage, Status: StageApplied}
}

func skipped(stage string, missing series.Column) StageResult {
	return StageResult{Stage: stage, Status: StageSkipped, Missing: missing}
}

// requireColumns returns the first of cols absent from s.
func requireColumns(s *series.Series, cols ...series.Column) (series.Column, bool) {
	for _, c := range cols {
		if !s.Has(c) {
			return c, false
		}
	}
	return 0, true
}

// Pipeline chains the stages for one site.
type Pipeline struct {
	Site           Site
	Defaults       Defaults
	ExtendedOutput bool
	Logger         *zap.SugaredLogger
}

// Run processes an irradiance series holding at least dni, dhi and ghi into
// a power series. Skipped stages are logged and reported; later stages still
// run and may skip in turn.
func (p *Pipeline) Run(s *series.Series) (*series.Series, []StageResult) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	// clear-sky input carries no cloud data
	if !s.Has(series.ColCloudCover) {
		s = s.Clone()
		for i := range s.Rows {
			s.Rows[i].CloudCover = 0
		}
		s.Columns = s.Columns.With(series.ColCloudCover)
	}

	stages := []func(*series.Series) (*series.Series, StageResult){
		func(in *series.Series) (*series.Series, StageResult) { return Transpose(in, p.Site, p.Defaults) },
		func(in *series.Series) (*series.Series, StageResult) { return ReflectionCorrect(in, p.Site) },
		func(in *series.Series) (*series.Series, StageResult) { return PanelTemperature(in, p.Defaults) },
		func(in *series.Series) (*series.Series, StageResult) { return Output(in, p.Site.RatedPowerKW) },
	}

	results := make([]StageResult, 0, len(stages))
	for _, stage := range stages {
		var res StageResult
		s, res = stage(s)
		if res.Skipped() {
			log.Warnw("pipeline stage skipped", "stage", res.Stage, "missing_column", res.Missing.Name())
		}
		results = append(results, res)
	}

	if !p.ExtendedOutput {
		s = s.Project(BasicColumns)
	}
	return s, results
}
