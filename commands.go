package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devskill-org/pvforecast/forecast"
	"github.com/devskill-org/pvforecast/series"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast PV output from the FMI weather forecast",
	Long: `Forecast PV output from the FMI weather forecast. Without --start and
--end the whole published forecast is printed.`,
	RunE: runForecast,
}

var clearskyCmd = &cobra.Command{
	Use:   "clearsky",
	Short: "Estimate PV output under a cloudless sky",
	RunE:  runClearsky,
}

var atCmd = &cobra.Command{
	Use:   "at TIME",
	Short: "Interpolate the forecast to an RFC3339 instant",
	Args:  cobra.ExactArgs(1),
	RunE:  runAt,
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Interpolate the forecast to the current instant",
	RunE:  runNow,
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Forecast from now until 23:00 UTC",
	RunE:  runToday,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve forecasts over HTTP and WebSocket",
	RunE:  runServe,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the effective settings",
	RunE:  runInfo,
}

func init() {
	forecastCmd.Flags().String("start", "", "Interval start (RFC3339)")
	forecastCmd.Flags().String("end", "", "Interval end (RFC3339)")

	clearskyCmd.Flags().String("start", "", "Interval start (RFC3339)")
	clearskyCmd.Flags().String("end", "", "Interval end (RFC3339)")
	clearskyCmd.Flags().Int("timestep", 0, "Minutes between estimates (default from config)")

	serveCmd.Flags().Int("port", 8080, "HTTP port")

	infoCmd.Flags().String("save", "", "Write the effective configuration to a JSON file")

	rootCmd.AddCommand(forecastCmd, clearskyCmd, atCmd, nowCmd, todayCmd, serveCmd, infoCmd)
}

func parseTimeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected RFC3339 such as 2024-06-10T12:00:00Z", name, raw)
	}
	return t, nil
}

func parseInterval(cmd *cobra.Command) (start, end time.Time, err error) {
	if start, err = parseTimeFlag(cmd, "start"); err != nil {
		return
	}
	if end, err = parseTimeFlag(cmd, "end"); err != nil {
		return
	}
	if start.IsZero() != end.IsZero() {
		err = fmt.Errorf("--start and --end must be given together")
	}
	return
}

func runForecast(cmd *cobra.Command, args []string) error {
	start, end, err := parseInterval(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var s *series.Series
	if start.IsZero() {
		s, err = a.forecaster.DefaultForecast(cmd.Context())
	} else {
		s, err = a.forecaster.ForecastForInterval(cmd.Context(), start, end)
	}
	if err != nil {
		return err
	}
	return a.printSeries(s)
}

func runClearsky(cmd *cobra.Command, args []string) error {
	start, end, err := parseInterval(cmd)
	if err != nil {
		return err
	}
	timestep, _ := cmd.Flags().GetInt("timestep")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var s *series.Series
	if start.IsZero() && timestep == 0 {
		s, err = a.forecaster.DefaultClearskyEstimate(cmd.Context())
	} else {
		if start.IsZero() {
			start = time.Now().UTC().Truncate(time.Hour).Add(-3 * time.Hour)
			end = start.Add(68 * time.Hour)
		}
		s, err = a.forecaster.ClearskyEstimateForInterval(cmd.Context(), start, end, timestep)
	}
	if err != nil {
		return err
	}
	return a.printSeries(s)
}

func runAt(cmd *cobra.Command, args []string) error {
	t, err := time.Parse(time.RFC3339, args[0])
	if err != nil {
		return fmt.Errorf("invalid time %q: expected RFC3339 such as 2024-06-10T12:00:00Z", args[0])
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	est, ok, err := a.forecaster.ForecastAt(cmd.Context(), t)
	if err != nil {
		return err
	}
	return a.printEstimate(est, ok)
}

func runNow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	est, ok, err := a.forecaster.ForecastNow(cmd.Context())
	if err != nil {
		return err
	}
	return a.printEstimate(est, ok)
}

func runToday(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.forecaster.ForecastToday(cmd.Context())
	if err != nil {
		return err
	}
	return a.printSeries(s)
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Print(a.forecaster.Info())

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := a.forecaster.Config().SaveConfig(path); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	port := a.config.HTTPPort
	if port == 0 {
		port, _ = cmd.Flags().GetInt("port")
	}

	server := forecast.NewServer(a.forecaster, port, a.config.WSPushInterval, a.logger)
	if err := server.Start(); err != nil {
		return err
	}
	a.logger.Infow("serving forecasts, press Ctrl+C to stop", "port", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	a.logger.Info("shutdown signal received, stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(ctx)
}
