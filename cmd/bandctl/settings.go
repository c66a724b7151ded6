package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/band"
	"github.com/srg/bandctl/internal/codec"
)

func newGoalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal <steps>",
		Short: "Set the daily step goal",
		Args:  cobra.ExactArgs(1),
		RunE:  runGoal,
	}
	cmd.Flags().Bool("notify", false, "Vibrate when the goal is reached")
	return cmd
}

func runGoal(cmd *cobra.Command, args []string) error {
	steps, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid step goal %q", args[0])
	}
	if _, err := codec.StepGoalCommand(steps); err != nil {
		return err
	}
	e, err := loadEnv(cmd)
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

	if err := b.SetGoal(ctx, steps); err != nil {
		return err
	}
	notifyChanged := cmd.Flags().Changed("notify")
	notify, _ := cmd.Flags().GetBool("notify")
	if notifyChanged {
		if err := b.SetGoalNotifications(ctx, notify); err != nil {
			return err
		}
	}

	fmt.Fprintf(e.out(), "Step goal set to %d\n", steps)
	return e.updateSettings(p, func(s *band.Settings) {
		s.Goal = steps
		if notifyChanged {
			s.GoalNotifications = notify
		}
	})
}

func newAlarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Manage band alarms",
	}

	set := &cobra.Command{
		Use:   "set <slot> <HH:MM>",
		Short: "Program an alarm slot",
		Args:  cobra.ExactArgs(2),
		RunE:  runAlarmSet,
	}
	set.Flags().String("days", "once", `Repetition: "once", "everyday" or days like "Mon,Tue"`)
	set.Flags().Bool("off", false, "Store the alarm disabled")

	list := &cobra.Command{
		Use:   "list",
		Short: "List alarms last written by bandctl",
		Args:  cobra.NoArgs,
		RunE:  runAlarmList,
	}
	cmd.AddCommand(set, list)
	return cmd
}

func runAlarmSet(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid alarm slot %q", args[0])
	}
	at, err := codec.ParseClockTime(args[1])
	if err != nil {
		return err
	}
	daysStr, _ := cmd.Flags().GetString("days")
	days, err := codec.ParseRepetition(daysStr)
	if err != nil {
		return err
	}
	off, _ := cmd.Flags().GetBool("off")
	alarm := codec.Alarm{ID: id, Enabled: !off, Time: at, Days: days}
	if _, err := codec.AlarmCommand(alarm); err != nil {
		return err
	}

	e, err := loadEnv(cmd)
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

	if err := b.SetAlarm(ctx, alarm); err != nil {
		return err
	}
	fmt.Fprintf(e.out(), "Alarm %d set to %s (%s)\n", id, at, days)
	return e.updateSettings(p, func(s *band.Settings) { s.PutAlarm(alarm) })
}

func runAlarmList(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	p, err := e.selected()
	if err != nil {
		return err
	}
	if p.Settings == nil || len(p.Settings.Alarms) == 0 {
		fmt.Fprintln(e.out(), "No alarms set.")
		return nil
	}
	w := tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tTIME\tDAYS\tENABLED")
	for _, a := range p.Settings.Alarms {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", a.ID, a.Time, a.Days, a.Enabled)
	}
	return w.Flush()
}

func newIdleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "idle <HH:MM> <HH:MM> | idle off",
		Short: "Set the idle alert window",
		Long:  "Vibrate after an hour without movement between the two times, or disable idle alerts.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runIdle,
	}
}

func runIdle(cmd *cobra.Command, args []string) error {
	var alerts band.IdleAlerts
	switch {
	case len(args) == 1 && strings.EqualFold(args[0], "off"):
	case len(args) == 2:
		start, err := codec.ParseClockTime(args[0])
		if err != nil {
			return err
		}
		end, err := codec.ParseClockTime(args[1])
		if err != nil {
			return err
		}
		alerts = band.IdleAlerts{Enabled: true, Start: start, End: end}
	default:
		return fmt.Errorf("expected a start and end time or 'off'")
	}

	e, err := loadEnv(cmd)
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

	if err := b.SetIdleAlerts(ctx, alerts); err != nil {
		return err
	}
	if alerts.Enabled {
		fmt.Fprintf(e.out(), "Idle alerts on from %s to %s\n", alerts.Start, alerts.End)
	} else {
		fmt.Fprintln(e.out(), "Idle alerts off")
	}
	return e.updateSettings(p, func(s *band.Settings) { s.IdleAlerts = &alerts })
}

func newDisplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Configure wrist lift, night mode and lock",
		Long: `Configure the display. Schedules are "on", "off", "sunset" or a window
like 22:00-07:00. Wrist lift does not support sunset, night mode has no "on".`,
		Args: cobra.NoArgs,
		RunE: runDisplay,
	}
	cmd.Flags().String("wrist-lift", "", "Light up on wrist lift: on, off or HH:MM-HH:MM")
	cmd.Flags().String("night-mode", "", "Dim the display: off, sunset or HH:MM-HH:MM")
	cmd.Flags().String("lock", "", "Band lock: on or off")
	return cmd
}

// parseSchedule reads "on", "off", "sunset" or "HH:MM-HH:MM"
func parseSchedule(s string) (codec.Schedule, error) {
	switch mode := codec.ScheduleMode(strings.ToLower(s)); mode {
	case codec.ScheduleOn, codec.ScheduleOff, codec.ScheduleSunset:
		return codec.Schedule{Mode: mode}, nil
	}
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return codec.Schedule{}, fmt.Errorf("invalid schedule %q", s)
	}
	start, err := codec.ParseClockTime(from)
	if err != nil {
		return codec.Schedule{}, err
	}
	end, err := codec.ParseClockTime(to)
	if err != nil {
		return codec.Schedule{}, err
	}
	return codec.Schedule{Mode: codec.ScheduleScheduled, Start: start, End: end}, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func runDisplay(cmd *cobra.Command, _ []string) error {
	wristStr, _ := cmd.Flags().GetString("wrist-lift")
	nightStr, _ := cmd.Flags().GetString("night-mode")
	lockStr, _ := cmd.Flags().GetString("lock")
	if wristStr == "" && nightStr == "" && lockStr == "" {
		return fmt.Errorf("nothing to do: pass --wrist-lift, --night-mode or --lock")
	}

	var (
		wrist, night *codec.Schedule
		lock         *bool
	)
	if wristStr != "" {
		s, err := parseSchedule(wristStr)
		if err != nil {
			return err
		}
		if _, err := codec.WristLiftCommand(s); err != nil {
			return err
		}
		wrist = &s
	}
	if nightStr != "" {
		s, err := parseSchedule(nightStr)
		if err != nil {
			return err
		}
		if _, err := codec.NightModeCommand(s); err != nil {
			return err
		}
		night = &s
	}
	if lockStr != "" {
		on, err := parseOnOff(lockStr)
		if err != nil {
			return err
		}
		lock = &on
	}

	e, err := loadEnv(cmd)
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

	if wrist != nil {
		if err := b.SetWristLift(ctx, *wrist); err != nil {
			return err
		}
		fmt.Fprintf(e.out(), "Wrist lift: %s\n", describeSchedule(*wrist))
	}
	if night != nil {
		if err := b.SetNightMode(ctx, *night); err != nil {
			return err
		}
		fmt.Fprintf(e.out(), "Night mode: %s\n", describeSchedule(*night))
	}
	if lock != nil {
		if err := b.SetLock(ctx, *lock); err != nil {
			return err
		}
		fmt.Fprintf(e.out(), "Lock: %t\n", *lock)
	}

	return e.updateSettings(p, func(s *band.Settings) {
		if wrist != nil {
			s.WristLift = wrist
		}
		if night != nil {
			s.NightMode = night
		}
		if lock != nil {
			s.Lock = *lock
		}
	})
}

func describeSchedule(s codec.Schedule) string {
	if s.Mode == codec.ScheduleScheduled {
		return fmt.Sprintf("%s-%s", s.Start, s.End)
	}
	return string(s.Mode)
}
