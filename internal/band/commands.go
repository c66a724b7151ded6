package band

import (
	"context"
	"fmt"
	"time"

	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/chunked"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/uuids"
)

// DeviceInfo collects the device information service
type DeviceInfo struct {
	SerialNumber     string      `json:"serial_number"`
	HardwareRevision string      `json:"hardware_revision"`
	SoftwareRevision string      `json:"software_revision"`
	PnP              codec.PnPID `json:"pnp"`
}

// IdleAlerts is the sedentary reminder setting
type IdleAlerts struct {
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Start   codec.ClockTime `json:"start" yaml:"start"`
	End     codec.ClockTime `json:"end" yaml:"end"`
}

func (b *Band) read(ctx context.Context, serviceID, charID string) ([]byte, error) {
	return b.s.Read(ctx, serviceID, charID)
}

func (b *Band) configure(ctx context.Context, op string, cmd []byte) error {
	return b.do(ctx, op, func(ctx context.Context) error {
		return b.s.Write(ctx, uuids.ServiceBand1, uuids.CharConfiguration, cmd, true)
	})
}

// MAC reads the band's MAC address from its system id
func (b *Band) MAC(ctx context.Context) (mac string, err error) {
	err = b.do(ctx, "get mac", func(ctx context.Context) error {
		raw, err := b.read(ctx, uuids.ServiceDeviceInformation, uuids.CharSystemID)
		if err != nil {
			return err
		}
		mac, err = codec.DecodeMAC(raw)
		return err
	})
	return mac, err
}

// Battery reads the battery info
func (b *Band) Battery(ctx context.Context) (bat codec.Battery, err error) {
	err = b.do(ctx, "get battery", func(ctx context.Context) error {
		raw, err := b.read(ctx, uuids.ServiceBand1, uuids.CharBattery)
		if err != nil {
			return err
		}
		bat, err = codec.DecodeBattery(raw, b.opts.Location)
		return err
	})
	return bat, err
}

// Steps reads today's realtime step counters
func (b *Band) Steps(ctx context.Context) (steps codec.Steps, err error) {
	err = b.do(ctx, "get steps", func(ctx context.Context) error {
		raw, err := b.read(ctx, uuids.ServiceBand1, uuids.CharSteps)
		if err != nil {
			return err
		}
		steps, err = codec.DecodeSteps(raw, b.opts.StepsLayout)
		return err
	})
	return steps, err
}

// DeviceInfo reads serial number, revisions and PnP id
func (b *Band) DeviceInfo(ctx context.Context) (info DeviceInfo, err error) {
	err = b.do(ctx, "get device info", func(ctx context.Context) error {
		strs := []struct {
			char string
			dst  *string
		}{
			{uuids.CharSerialNumber, &info.SerialNumber},
			{uuids.CharHardwareRevision, &info.HardwareRevision},
			{uuids.CharSoftwareRevision, &info.SoftwareRevision},
		}
		for _, f := range strs {
			raw, err := b.read(ctx, uuids.ServiceDeviceInformation, f.char)
			if err != nil {
				return err
			}
			*f.dst = codec.DecodeString(raw)
		}

		raw, err := b.read(ctx, uuids.ServiceDeviceInformation, uuids.CharPnPID)
		if err != nil {
			return err
		}
		info.PnP, err = codec.DecodePnPID(raw)
		return err
	})
	return info, err
}

// CurrentTime reads the band's clock
func (b *Band) CurrentTime(ctx context.Context) (t time.Time, err error) {
	err = b.do(ctx, "get time", func(ctx context.Context) error {
		raw, err := b.read(ctx, uuids.ServiceBand1, uuids.CharCurrentTime)
		if err != nil {
			return err
		}
		t, err = codec.DecodeCurrentTime(raw, b.opts.Location)
		return err
	})
	return t, err
}

// SetTime sets the band's clock to t in the band's zone
func (b *Band) SetTime(ctx context.Context, t time.Time) error {
	return b.do(ctx, "set time", func(ctx context.Context) error {
		return b.s.Write(ctx, uuids.ServiceBand1, uuids.CharCurrentTime, codec.EncodeCurrentTime(t.In(b.opts.Location)), true)
	})
}

// SetGoal sets the daily step goal
func (b *Band) SetGoal(ctx context.Context, steps int) error {
	cmd, err := codec.StepGoalCommand(steps)
	if err != nil {
		return err
	}
	return b.do(ctx, "set goal", func(ctx context.Context) error {
		return b.s.Write(ctx, uuids.ServiceBand1, uuids.CharUserSettings, cmd, true)
	})
}

// SetGoalNotifications toggles the goal reached notification
func (b *Band) SetGoalNotifications(ctx context.Context, enabled bool) error {
	return b.configure(ctx, "set goal notifications", codec.GoalNotificationsCommand(enabled))
}

// SetIdleAlerts sets the sedentary reminder window
func (b *Band) SetIdleAlerts(ctx context.Context, a IdleAlerts) error {
	cmd, err := codec.IdleAlertsCommand(a.Enabled, a.Start, a.End)
	if err != nil {
		return err
	}
	return b.configure(ctx, "set idle alerts", cmd)
}

// SetAlarm writes one alarm slot
func (b *Band) SetAlarm(ctx context.Context, a codec.Alarm) error {
	cmd, err := codec.AlarmCommand(a)
	if err != nil {
		return err
	}
	return b.configure(ctx, "set alarm", cmd)
}

// SetWristLift configures display-on-wrist-lift
func (b *Band) SetWristLift(ctx context.Context, s codec.Schedule) error {
	cmd, err := codec.WristLiftCommand(s)
	if err != nil {
		return err
	}
	return b.configure(ctx, "set wrist lift", cmd)
}

// SetNightMode configures the dimmed display window
func (b *Band) SetNightMode(ctx context.Context, s codec.Schedule) error {
	cmd, err := codec.NightModeCommand(s)
	if err != nil {
		return err
	}
	return b.configure(ctx, "set night mode", cmd)
}

// SetLock toggles the screen lock
func (b *Band) SetLock(ctx context.Context, enabled bool) error {
	return b.configure(ctx, "set lock", codec.LockCommand(enabled))
}

// PushWeather sends city, air index, current conditions and forecast, each
// as one chunked transfer.
func (b *Band) PushWeather(ctx context.Context, w codec.Weather) error {
	return b.do(ctx, "push weather", func(ctx context.Context) error {
		for _, payload := range codec.WeatherPayloads(w) {
			if err := chunked.Write(ctx, b.s, uuids.ServiceBand1, uuids.CharChunkedTransfer, codec.WeatherChunkType, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchActivity retrieves minute samples in [start, end) into sink
func (b *Band) FetchActivity(ctx context.Context, start, end time.Time, sink activity.Sink) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", activity.ErrInvalidRange, start.Format(time.DateTime), end.Format(time.DateTime))
	}
	return b.do(ctx, "fetch activity", func(ctx context.Context) error {
		return activity.NewFetcher(b.s, b.opts.Fetch).Run(ctx, start, end, sink)
	})
}

// StreamActivity is FetchActivity reported as an event stream
func (b *Band) StreamActivity(ctx context.Context, start, end time.Time) <-chan activity.Event {
	return activity.StreamFunc(ctx, func(ctx context.Context, sink activity.Sink) error {
		return b.FetchActivity(ctx, start, end, sink)
	})
}
