// Package meteo provides a client for the MET Norway Location Forecast API,
// used as a source of ambient conditions for clear-sky PV estimates.
//
// Basic Usage:
//
//	client := meteo.NewClient("pvforecast/1.0 (you@example.com)")
//
//	forecast, err := client.GetCompact(ctx, meteo.QueryParams{
//		Location: meteo.Location{Latitude: 59.9139, Longitude: 10.7522},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, c := range forecast.Conditions(times) {
//		fmt.Printf("%v %.1f°C %.1f m/s\n", c.Time, c.AirTemp, c.Wind)
//	}
//
// MET Norway requires an identifying User-Agent and asks clients to avoid
// polling more than needed; requests are rate limited per client.
//
// For more information about the API, visit: https://api.met.no/weatherapi/locationforecast/2.0/documentation
package meteo
