package sun

import (
	"math"
	"testing"
	"time"
)

func TestGetPosition_SolarNoonFacesSouth(t *testing.T) {
	// Stockholm, summer solstice, close to local solar noon (~10:49 UTC)
	ts := time.Date(2025, 6, 21, 10, 49, 0, 0, time.UTC)
	pos := GetPosition(ts, 59.3293, 18.0686)

	if math.Abs(pos.Azimuth-180) > 10 {
		t.Errorf("Expected azimuth near 180, got %.2f", pos.Azimuth)
	}
	// maximum elevation is 90 - 59.33 + 23.44 = ~54.1
	if math.Abs(pos.Elevation-54.1) > 1.5 {
		t.Errorf("Expected elevation near 54.1, got %.2f", pos.Elevation)
	}
	if math.Abs(pos.Zenith+pos.Elevation-90) > 1e-9 {
		t.Errorf("Zenith and elevation must sum to 90, got %.4f", pos.Zenith+pos.Elevation)
	}
}

func TestGetPosition_AzimuthRange(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		pos := GetPosition(start.Add(time.Duration(i)*30*time.Minute), 60.2, 24.9)
		if pos.Azimuth < 0 || pos.Azimuth >= 360 {
			t.Fatalf("Azimuth out of range at step %d: %.2f", i, pos.Azimuth)
		}
	}
}

func TestRefraction(t *testing.T) {
	if r := refraction(-5); r != 0 {
		t.Errorf("Expected no refraction well below the horizon, got %f", r)
	}
	// about 29 arc minutes at the horizon
	if r := refraction(0); math.Abs(r-0.48) > 0.05 {
		t.Errorf("Expected ~0.48 deg at the horizon, got %f", r)
	}
	if r := refraction(89); r > 0.01 {
		t.Errorf("Expected negligible refraction at zenith, got %f", r)
	}
}

func TestIsDaytime(t *testing.T) {
	noon := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)

	if !IsDaytime(noon, 60.2, 24.9) {
		t.Error("Expected daytime at Helsinki noon in June")
	}
	if IsDaytime(midnight, 60.2, 24.9) {
		t.Error("Expected night at Helsinki midnight in January")
	}
}

func TestPositions_MatchesGetPosition(t *testing.T) {
	start := time.Date(2024, 6, 10, 0, 30, 0, 0, time.UTC)
	times := make([]time.Time, 24)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}

	got := Positions(times, 60.17, 24.94)
	if len(got) != len(times) {
		t.Fatalf("Expected %d positions, got %d", len(times), len(got))
	}
	for i, ts := range times {
		if want := GetPosition(ts, 60.17, 24.94); got[i] != want {
			t.Errorf("Positions[%d] = %+v, want %+v", i, got[i], want)
		}
	}

	if len(Positions(nil, 60.17, 24.94)) != 0 {
		t.Error("Expected no positions for no times")
	}
}
