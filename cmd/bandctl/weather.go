package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/weather"
)

func newWeatherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather <city>",
		Short: "Push the forecast of a city to the band",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWeather,
	}
	cmd.Flags().StringP("unit", "u", "", "Temperature unit: celsius or fahrenheit (default from config)")
	return cmd
}

func runWeather(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	unitStr, _ := cmd.Flags().GetString("unit")
	if unitStr == "" {
		unitStr = e.cfg.TemperatureUnit
	}
	unit, err := weather.ParseUnit(unitStr)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	w, city, err := WeatherFactory(e.logger).Lookup(ctx, strings.Join(args, " "), unit)
	if err != nil {
		return err
	}
	w.Time = now().In(e.loc)

	b, _, err := e.openSelected(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.PushWeather(ctx, w); err != nil {
		return err
	}

	fmt.Fprintf(e.out(), "Sent weather for %s: %d° %s", city, w.Current, w.CurrentText)
	if len(w.Forecast) > 0 {
		fmt.Fprintf(e.out(), ", %d day forecast", min(len(w.Forecast), 7))
	}
	fmt.Fprintln(e.out())
	return nil
}
