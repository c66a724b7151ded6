package codec

import "fmt"

// Configuration characteristic command prefixes
const (
	cmdAlarm      = 0x02
	cmdDisplay    = 0x06
	cmdIdleAlerts = 0x08
	cmdNightMode  = 0x1a

	displayWristLift = 0x05
	displayGoalNotif = 0x06
	displayLock      = 0x16

	idleAlertInterval = 0x3c // minutes
)

func flag(on bool) byte {
	if on {
		return 0x01
	}
	return 0x00
}

// GoalNotificationsCommand toggles the goal reached notification
func GoalNotificationsCommand(enabled bool) []byte {
	return []byte{cmdDisplay, displayGoalNotif, 0x00, flag(enabled)}
}

// IdleAlertsCommand sets the sedentary reminder window
func IdleAlertsCommand(enabled bool, start, end ClockTime) ([]byte, error) {
	if !start.Valid() || !end.Valid() {
		return nil, fmt.Errorf("idle alerts: invalid window %s-%s", start, end)
	}
	return []byte{
		cmdIdleAlerts, flag(enabled), idleAlertInterval, 0x00,
		byte(start.Hour), byte(start.Minute), byte(end.Hour), byte(end.Minute),
		0x00, 0x00, 0x00, 0x00,
	}, nil
}

// StepGoalCommand is written to the user settings characteristic
func StepGoalCommand(goal int) ([]byte, error) {
	if goal < 0 || goal > 0xffff {
		return nil, fmt.Errorf("step goal %d out of range 0-65535", goal)
	}
	return []byte{0x10, 0x00, 0x00, byte(goal), byte(goal >> 8), 0x00, 0x00}, nil
}

// LockCommand toggles the band screen lock
func LockCommand(enabled bool) []byte {
	return []byte{cmdDisplay, displayLock, 0x00, flag(enabled)}
}

// ScheduleMode selects how a scheduled display feature is active
type ScheduleMode string

const (
	ScheduleOff       ScheduleMode = "off"
	ScheduleOn        ScheduleMode = "on"
	ScheduleSunset    ScheduleMode = "sunset"
	ScheduleScheduled ScheduleMode = "scheduled"
)

// Schedule is a feature mode with an optional active window
type Schedule struct {
	Mode  ScheduleMode `json:"mode" yaml:"mode"`
	Start ClockTime    `json:"start,omitempty" yaml:"start,omitempty"`
	End   ClockTime    `json:"end,omitempty" yaml:"end,omitempty"`
}

// WristLiftCommand configures display-on-wrist-lift. Sunset is not supported.
func WristLiftCommand(s Schedule) ([]byte, error) {
	switch s.Mode {
	case ScheduleOff:
		return []byte{cmdDisplay, displayWristLift, 0x00, 0x00}, nil
	case ScheduleOn:
		return []byte{cmdDisplay, displayWristLift, 0x00, 0x01}, nil
	case ScheduleScheduled:
		if !s.Start.Valid() || !s.End.Valid() {
			return nil, fmt.Errorf("wrist lift: invalid window %s-%s", s.Start, s.End)
		}
		return append([]byte{cmdDisplay, displayWristLift, 0x00, 0x01}, append(s.Start.bytes(), s.End.bytes()...)...), nil
	default:
		return nil, fmt.Errorf("wrist lift: unsupported mode %q", s.Mode)
	}
}

// NightModeCommand configures the dimmed display window. "on" is not a night mode.
func NightModeCommand(s Schedule) ([]byte, error) {
	switch s.Mode {
	case ScheduleOff:
		return []byte{cmdNightMode, 0x00}, nil
	case ScheduleSunset:
		return []byte{cmdNightMode, 0x02}, nil
	case ScheduleScheduled:
		if !s.Start.Valid() || !s.End.Valid() {
			return nil, fmt.Errorf("night mode: invalid window %s-%s", s.Start, s.End)
		}
		return append([]byte{cmdNightMode, 0x01}, append(s.Start.bytes(), s.End.bytes()...)...), nil
	default:
		return nil, fmt.Errorf("night mode: unsupported mode %q", s.Mode)
	}
}
