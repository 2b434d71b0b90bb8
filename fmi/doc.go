// Package fmi provides a client for the Finnish Meteorological Institute open
// data WFS service, limited to the HARMONIE surface point forecast used for
// PV modelling.
//
// Basic Usage:
//
//	client := fmi.NewClient("pvforecast/1.0 (you@example.com)")
//
//	forecast, err := client.GetForecast(ctx, fmi.QueryParams{
//		Location:  fmi.Location{Latitude: 60.17, Longitude: 24.94},
//		StartTime: time.Now().Add(-3 * time.Hour),
//		EndTime:   time.Now().Add(65 * time.Hour),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, p := range forecast.Points {
//		fmt.Printf("%v %.1f°C\n", p.Time, p.Value(fmi.ParamTemperature))
//	}
//
// The service publishes a forecast roughly every three hours covering the next
// 66 hours. Radiation parameters are accumulated in J/m² since model start.
//
// Requests are rate limited per client; see SetRateLimit.
//
// For more information about the service, visit: https://en.ilmatieteenlaitos.fi/open-data-manual-forecast-models
package fmi
