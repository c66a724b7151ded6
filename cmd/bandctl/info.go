package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/band"
	"github.com/srg/bandctl/internal/codec"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show battery, steps and device information",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
	cmd.Flags().StringP("format", "f", "", "Output format: table or json (default from config)")
	return cmd
}

type infoReport struct {
	Nickname string          `json:"nickname"`
	MAC      string          `json:"mac"`
	Battery  codec.Battery   `json:"battery"`
	Steps    codec.Steps     `json:"steps"`
	Device   band.DeviceInfo `json:"device"`
	Clock    time.Time       `json:"clock"`
}

// lowBattery is the level below which the battery is shown in red
const lowBattery = 20

func runInfo(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	format, err := e.format()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd)
	defer cancel()

	b, p, err := e.openSelected(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	r := infoReport{Nickname: p.Nickname}
	if r.MAC, err = b.MAC(ctx); err != nil {
		return err
	}
	if r.Battery, err = b.Battery(ctx); err != nil {
		return err
	}
	if r.Steps, err = b.Steps(ctx); err != nil {
		return err
	}
	if r.Device, err = b.DeviceInfo(ctx); err != nil {
		return err
	}
	if r.Clock, err = b.CurrentTime(ctx); err != nil {
		return err
	}

	if format == "json" {
		return e.printJSON(r)
	}

	level := fmt.Sprintf("%d%%", r.Battery.Level)
	if r.Battery.Level < lowBattery {
		level = color.RedString(level)
	}
	if r.Battery.Charging {
		level += " (charging)"
	}

	w := tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Band:\t%s\n", r.Nickname)
	fmt.Fprintf(w, "MAC:\t%s\n", r.MAC)
	fmt.Fprintf(w, "Battery:\t%s\n", level)
	fmt.Fprintf(w, "Last charged:\t%s\n", r.Battery.LastCharge.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Steps:\t%d\n", r.Steps.Steps)
	fmt.Fprintf(w, "Distance:\t%d m\n", r.Steps.Meters)
	fmt.Fprintf(w, "Calories:\t%d kcal\n", r.Steps.Calories)
	fmt.Fprintf(w, "Serial:\t%s\n", r.Device.SerialNumber)
	fmt.Fprintf(w, "Hardware:\t%s\n", r.Device.HardwareRevision)
	fmt.Fprintf(w, "Software:\t%s\n", r.Device.SoftwareRevision)
	fmt.Fprintf(w, "Clock:\t%s\n", r.Clock.Format("2006-01-02 15:04:05"))
	return w.Flush()
}
