package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/devskill-org/pvforecast/forecast"
)

func TestSettingsLayering(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	config := forecast.DefaultConfig()
	config.PowerRatingKW = 3
	config.Timezone = "Europe/Helsinki"
	path := filepath.Join(dir, "config.json")
	if err := config.SaveConfig(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PVFORECAST_AZIMUTH=170\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PVFORECAST_LATITUDE", "60.17")
	t.Setenv("PVFORECAST_LONGITUDE", "24.94")
	t.Cleanup(func() { os.Unsetenv("PVFORECAST_AZIMUTH") })

	if err := infoCmd.ParseFlags([]string{"--config", path, "--tilt", "35", "--power", "4.5"}); err != nil {
		t.Fatal(err)
	}

	_, got, err := settings(infoCmd)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}

	if got.Latitude == nil || *got.Latitude != 60.17 {
		t.Errorf("Expected latitude from environment, got %v", got.Latitude)
	}
	if got.Azimuth == nil || *got.Azimuth != 170 {
		t.Errorf("Expected azimuth from .env, got %v", got.Azimuth)
	}
	if got.Tilt == nil || *got.Tilt != 35 {
		t.Errorf("Expected tilt from flag, got %v", got.Tilt)
	}
	if got.PowerRatingKW != 4.5 {
		t.Errorf("Expected flag to override config power, got %f", got.PowerRatingKW)
	}
	if got.Timezone != "Europe/Helsinki" {
		t.Errorf("Expected timezone from config file, got %q", got.Timezone)
	}
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := newLogger(debug, "warn")
		if err != nil {
			t.Fatalf("newLogger(%t) failed: %v", debug, err)
		}
		if logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug level to be disabled at warn")
		}
	}

	if _, err := newLogger(false, "loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
