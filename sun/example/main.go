// Package main prints the apparent solar position and daylight state for a site.
package main

import (
	"fmt"
	"time"

	"github.com/devskill-org/pvforecast/sun"
)

func main() {
	lat, lon := 60.2044, 24.9625 // Helsinki, Kumpula
	now := time.Now().UTC()

	pos := sun.GetPosition(now, lat, lon)
	fmt.Printf("Zenith: %.2f°, Azimuth: %.2f°, Elevation: %.2f°\n", pos.Zenith, pos.Azimuth, pos.Elevation)
	fmt.Println("Daytime:", sun.IsDaytime(now, lat, lon))
}
