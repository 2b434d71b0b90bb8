package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/devskill-org/pvforecast/forecast"
	"github.com/devskill-org/pvforecast/series"
)

func (a *app) printSeries(s *series.Series) error {
	if a.viper.GetBool("local-time") {
		s = a.forecaster.AddLocalTime(s)
	}

	if a.viper.GetBool("json") {
		return printJSON(s)
	}

	if s.Len() == 0 {
		fmt.Println("No forecast rows in the requested interval")
		return nil
	}

	cols := s.Columns
	local := cols.Has(series.ColLocalTime)
	cols &^= series.Set(series.ColLocalTime)

	var header strings.Builder
	header.WriteString(fmt.Sprintf("%-20s", "time (UTC)"))
	if local {
		header.WriteString(fmt.Sprintf(" %-20s", "local time"))
	}
	for _, name := range cols.Names() {
		header.WriteString(fmt.Sprintf(" %12s", name))
	}
	fmt.Println(header.String())
	fmt.Println(strings.Repeat("─", header.Len()))

	peak := 0.0
	for _, r := range s.Rows {
		line := fmt.Sprintf("%-20s", r.Time.Format("2006-01-02 15:04"))
		if local {
			line += fmt.Sprintf(" %-20s", r.LocalTime.Format("2006-01-02 15:04 MST"))
		}
		for _, c := range cols.Columns() {
			line += " " + formatCell(r.Get(c))
		}
		fmt.Println(line)

		if cols.Has(series.ColOutput) && r.Output > peak {
			peak = r.Output
		}
	}

	if cols.Has(series.ColOutput) {
		fmt.Println(strings.Repeat("─", header.Len()))
		fmt.Printf("Rows: %d  Peak output: %.3f kW\n", s.Len(), peak)
	}
	return nil
}

func (a *app) printEstimate(est forecast.Estimate, ok bool) error {
	if !ok {
		fmt.Println("No forecast available for the requested time")
		return nil
	}
	if a.viper.GetBool("json") {
		return printJSON(est)
	}

	fmt.Printf("Time: %s\n", est.Row.Time.Format("2006-01-02 15:04:05 UTC"))
	if a.viper.GetBool("local-time") {
		fmt.Printf("Local time: %s\n", est.Row.Time.In(a.forecaster.Timezone()).Format("2006-01-02 15:04:05 MST"))
	}
	for _, c := range est.Columns.Columns() {
		if c == series.ColLocalTime {
			continue
		}
		fmt.Printf("  %-28s %s\n", c.Name()+":", strings.TrimSpace(formatCell(est.Get(c))))
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return fmt.Sprintf("%12s", "-")
	}
	return fmt.Sprintf("%12.3f", v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
