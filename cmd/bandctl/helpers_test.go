package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("dial: %w", device.ErrNotInitialized), "Bluetooth is not available"},
		{fmt.Errorf("connect: %w", session.ErrAdvertisementTimeout), "did not show up"},
		{fmt.Errorf("get battery: %w", device.ErrNotReachable), "not reachable"},
		{fmt.Errorf("open: authenticate: %w", auth.ErrIncorrectKey), "rejected the auth key"},
		{store.ErrNotFound, "bandctl band list"},
		{&device.NotFoundError{Resource: "characteristic", UUIDs: []string{"fee0", "0020"}}, "does not support"},
		{context.DeadlineExceeded, "timed out"},
		{errors.New("something odd"), "something odd"},
	}
	for _, tt := range tests {
		assert.Contains(t, FormatUserError(tt.err), tt.want, tt.err.Error())
	}
}

func TestParseWhen(t *testing.T) {
	ref := time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+2", 2*3600)

	tests := map[string]time.Time{
		"24h":                  ref.Add(-24 * time.Hour),
		"2024-05-01":           time.Date(2024, time.May, 1, 0, 0, 0, 0, loc),
		"2024-05-01T06:30":     time.Date(2024, time.May, 1, 6, 30, 0, 0, loc),
		"2024-05-01 06:30":     time.Date(2024, time.May, 1, 6, 30, 0, 0, loc),
		"2024-05-01T06:30:00Z": time.Date(2024, time.May, 1, 6, 30, 0, 0, time.UTC),
	}
	for in, want := range tests {
		got, err := parseWhen(in, loc, ref)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s want %s", in, got, want)
	}

	_, err := parseWhen("yesterday", loc, ref)
	assert.Error(t, err)
}

func TestParseSchedule(t *testing.T) {
	s, err := parseSchedule("22:00-07:30")
	require.NoError(t, err)
	assert.Equal(t, codec.Schedule{Mode: codec.ScheduleScheduled, Start: codec.ClockTime{Hour: 22}, End: codec.ClockTime{Hour: 7, Minute: 30}}, s)
	assert.Equal(t, "22:00-07:30", describeSchedule(s))

	s, err = parseSchedule("Sunset")
	require.NoError(t, err)
	assert.Equal(t, codec.ScheduleSunset, s.Mode)

	for _, bad := range []string{"dusk", "22:00", "25:00-07:00"} {
		_, err := parseSchedule(bad)
		assert.Error(t, err, bad)
	}

	on, err := parseOnOff("ON")
	require.NoError(t, err)
	assert.True(t, on)
	_, err = parseOnOff("maybe")
	assert.Error(t, err)
}

func TestHourMerger(t *testing.T) {
	h := time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC)
	m := &hourMerger{hours: map[int64]activity.HourlyAggregate{}}

	first := m.merge([]activity.HourlyAggregate{{Time: h, TotalSteps: 10, AverageHeartRate: 60, Samples: 30}})
	assert.Equal(t, 10, first[0].TotalSteps)

	second := m.merge([]activity.HourlyAggregate{
		{Time: h, TotalSteps: 20, AverageHeartRate: 90, Samples: 30},
		{Time: h.Add(time.Hour), TotalSteps: 5, Samples: 1},
	})
	require.Len(t, second, 2)
	assert.Equal(t, 30, second[0].TotalSteps, "split hour MUST be folded back together")
	assert.InDelta(t, 75, second[0].AverageHeartRate, 1e-9)
	assert.Equal(t, 60, second[0].Samples)
	assert.Len(t, m.hours, 2)
}
