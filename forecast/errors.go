package forecast

import (
	"fmt"
	"time"
)

// ConfigurationMissingError is returned when a forecast is requested before
// the site location or the panel angles are set.
type ConfigurationMissingError struct {
	Field string // "location" or "angles"
}

func (e *ConfigurationMissingError) Error() string {
	switch e.Field {
	case "location":
		return "latitude and longitude must be set before PV output is estimated, call SetLocation first with valid WGS84 coordinates"
	case "angles":
		return "tilt and azimuth must be set before PV output is estimated, call SetAngles first with 0-90 and 0-360 degree panel angles"
	default:
		return fmt.Sprintf("%s must be set before PV output is estimated", e.Field)
	}
}

// InvalidTimezoneError reports a zone name missing from the tz database.
type InvalidTimezoneError struct {
	Name string
	Err  error
}

func (e *InvalidTimezoneError) Error() string {
	return fmt.Sprintf("timezone %q is not a valid IANA zone name such as \"Europe/Helsinki\"", e.Name)
}

func (e *InvalidTimezoneError) Unwrap() error {
	return e.Err
}

// DataUnavailableError is returned when the weather provider has no usable
// rows for the requested interval. It names the interval and the horizon the
// service publishes so the caller can tell a bad location from a bad window.
type DataUnavailableError struct {
	Start        time.Time
	End          time.Time
	HorizonStart time.Time
	HorizonEnd   time.Time
}

func (e *DataUnavailableError) Error() string {
	const layout = "2006-01-02 15:04"
	return fmt.Sprintf(
		"FMI open data did not return a forecast with valid values for %s .. %s UTC. "+
			"Check that the location is within the HARMONIE-AROME model area and that the interval "+
			"contains hours between now (%s) and the forecast end (%s)",
		e.Start.UTC().Format(layout), e.End.UTC().Format(layout),
		e.HorizonStart.UTC().Format(layout), e.HorizonEnd.UTC().Format(layout))
}

// ValidationError represents an invalid setter argument
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
