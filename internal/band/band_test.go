package band_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/band"
	"github.com/srg/bandctl/internal/chunked"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/testutils"
	"github.com/srg/bandctl/internal/uuids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const addr = "C8:0F:10:11:12:13"

var bandClock = time.Date(2024, time.May, 4, 18, 30, 0, 0, time.UTC)

type BandTestSuite struct {
	suite.Suite
	p    *testutils.FakePeripheral
	s    *session.Session
	band *band.Band
	ctx  context.Context
}

func (s *BandTestSuite) SetupTest() {
	s.p = testutils.NewFakeBand(addr, bandClock)

	s.s = session.New(s.p, device.Handle{ID: "1", Address: addr}, session.Options{}, testutils.NewTestLogger(s.T()))
	s.band = band.New(s.s, band.Options{Location: time.UTC})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	s.T().Cleanup(cancel)
	s.ctx = ctx
}

func (s *BandTestSuite) TearDownTest() {
	s.NoError(s.band.Close())
}

func (s *BandTestSuite) TestReads() {
	mac, err := s.band.MAC(s.ctx)
	s.Require().NoError(err)
	s.Equal(addr, mac)

	bat, err := s.band.Battery(s.ctx)
	s.Require().NoError(err)
	s.Equal(81, bat.Level)
	s.Equal(bandClock.Add(-24*time.Hour), bat.LastCharge)

	steps, err := s.band.Steps(s.ctx)
	s.Require().NoError(err)
	s.Equal(codec.Steps{Steps: 4321, Meters: 2900, Calories: 120}, steps)

	info, err := s.band.DeviceInfo(s.ctx)
	s.Require().NoError(err)
	s.Equal("12345", info.SerialNumber)
	s.Equal("V0.44.4.1", info.HardwareRevision)
	s.Equal("1.0.9.66", info.SoftwareRevision)
	s.Equal(0x0157, info.PnP.VendorID)

	now, err := s.band.CurrentTime(s.ctx)
	s.Require().NoError(err)
	s.Equal(bandClock, now)
}

func (s *BandTestSuite) TestOperationReleasesConnection() {
	// GOAL: Verify an operation that opened the connection closes it on success and failure

	_, err := s.band.Battery(s.ctx)
	s.Require().NoError(err)
	s.False(s.p.Connected(), "MUST disconnect after a successful operation")

	s.p.SetValue(uuids.CharBattery, []byte{0x0f, 0x01})
	_, err = s.band.Battery(s.ctx)
	s.ErrorIs(err, codec.ErrShortPayload)
	s.False(s.p.Connected(), "MUST disconnect after a failed operation")
	s.Equal(2, s.p.Dials())
}

func (s *BandTestSuite) TestOpenKeepsConnection() {
	s.Require().NoError(s.band.Open(s.ctx))

	_, err := s.band.Battery(s.ctx)
	s.Require().NoError(err)
	_, err = s.band.MAC(s.ctx)
	s.Require().NoError(err)

	s.True(s.p.Connected(), "MUST keep a connection it did not open")
	s.Equal(1, s.p.Dials())
}

func (s *BandTestSuite) TestConfigurationWrites() {
	s.Require().NoError(s.band.SetGoalNotifications(s.ctx, true))
	s.Require().NoError(s.band.SetIdleAlerts(s.ctx, band.IdleAlerts{Enabled: true, Start: codec.ClockTime{Hour: 9}, End: codec.ClockTime{Hour: 17, Minute: 30}}))
	s.Require().NoError(s.band.SetAlarm(s.ctx, codec.Alarm{ID: 2, Enabled: true, Time: codec.ClockTime{Hour: 7}, Days: codec.Everyday}))
	s.Require().NoError(s.band.SetLock(s.ctx, false))
	s.Require().NoError(s.band.SetNightMode(s.ctx, codec.Schedule{Mode: codec.ScheduleSunset}))
	s.Require().NoError(s.band.SetWristLift(s.ctx, codec.Schedule{Mode: codec.ScheduleOn}))
	s.Error(s.band.SetAlarm(s.ctx, codec.Alarm{ID: 99}), "MUST validate before connecting")

	s.Equal([][]byte{
		{0x06, 0x06, 0x00, 0x01},
		{0x08, 0x01, 0x3c, 0x00, 9, 0, 17, 30, 0, 0, 0, 0},
		{0x02, 0x82, 7, 0, 0x7f},
		{0x06, 0x16, 0x00, 0x00},
		{0x1a, 0x02},
		{0x06, 0x05, 0x00, 0x01},
	}, s.p.Writes(uuids.CharConfiguration))

	s.Require().NoError(s.band.SetGoal(s.ctx, 10000))
	s.Equal([][]byte{{0x10, 0x00, 0x00, 0x10, 0x27, 0x00, 0x00}}, s.p.Writes(uuids.CharUserSettings))
}

func (s *BandTestSuite) TestSetTime() {
	at := time.Date(2024, time.May, 6, 8, 0, 0, 0, time.UTC)
	s.Require().NoError(s.band.SetTime(s.ctx, at))

	writes := s.p.Writes(uuids.CharCurrentTime)
	s.Require().Len(writes, 1)
	s.Equal(codec.EncodeCurrentTime(at), writes[0])
}

func (s *BandTestSuite) TestPushWeather() {
	w := codec.Weather{
		Time:     bandClock,
		City:     "Reykjavik-Hofudborgarsvaedid",
		Forecast: []codec.DayForecast{{Icon: 1, High: 4, Low: -2}, {Icon: 2, High: 3, Low: -4}},
	}
	s.Require().NoError(s.band.PushWeather(s.ctx, w))

	var want int
	for _, p := range codec.WeatherPayloads(w) {
		want += len(chunked.Frames(codec.WeatherChunkType, p))
	}
	writes := s.p.Writes(uuids.CharChunkedTransfer)
	s.Len(writes, want, "MUST send every sub-payload as chunked frames")
	s.Equal(byte(0x01), writes[0][1], "MUST start the city transfer with a first frame")
}

func (s *BandTestSuite) TestAuthenticatesEachConnection() {
	key, err := auth.ParseKey("000102030405060708090a0b0c0d0e0f")
	s.Require().NoError(err)
	s.band = band.New(s.s, band.Options{Key: &key, Location: time.UTC})

	_, err = s.band.Battery(s.ctx)
	s.Require().NoError(err)
	_, err = s.band.Battery(s.ctx)
	s.Require().NoError(err)
	s.Len(s.p.Writes(uuids.CharAuth), 4, "MUST authenticate every connection it opens")

	s.p.OnWrite(uuids.CharAuth, testutils.RejectKey)
	_, err = s.band.Battery(s.ctx)
	s.ErrorIs(err, auth.ErrIncorrectKey)
	s.False(s.p.Connected())
}

func (s *BandTestSuite) TestAuthenticateWithoutKey() {
	s.ErrorIs(s.band.Authenticate(s.ctx), band.ErrNoKey)
}

func (s *BandTestSuite) TestConnectFailurePropagates() {
	boom := errors.New("hci: permission denied")
	s.p.FailDial(boom)

	_, err := s.band.MAC(s.ctx)
	s.ErrorIs(err, boom)
}

func (s *BandTestSuite) TestFetchActivity() {
	s.p.OnWrite(uuids.CharFetch, func(p *testutils.FakePeripheral, data []byte) {
		switch data[0] {
		case 0x01:
			p.Notify(uuids.CharFetch, []byte{0x10, 0x01, 0x01, 0, 0, 0, 0, 0xe8, 0x07, 5, 4, 10, 0})
		case 0x02:
			p.Notify(uuids.CharActivityData, []byte{0x00, 1, 10, 20, 70, 1, 10, 30, 80})
			p.Notify(uuids.CharFetch, []byte{0x10, 0x02, 0x01})
		}
	})

	start := time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC)
	var batches [][]activity.HourlyAggregate
	var kinds []activity.EventKind
	for ev := range s.band.StreamActivity(s.ctx, start, start.Add(2*time.Minute)) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == activity.EventBatch {
			batches = append(batches, ev.Batch)
		}
		if ev.Kind == activity.EventDone {
			s.NoError(ev.Err)
		}
	}

	s.Require().Len(batches, 1)
	s.Equal(50, batches[0][0].TotalSteps)
	s.InDelta(75.0, batches[0][0].AverageHeartRate, 1e-9)
	s.Equal(activity.EventDone, kinds[len(kinds)-1])
	s.False(s.p.Connected(), "MUST release the connection after the fetch")

	err := s.band.FetchActivity(s.ctx, start, start, nil)
	s.ErrorIs(err, activity.ErrInvalidRange)
}

func TestBandTestSuite(t *testing.T) {
	suite.Run(t, new(BandTestSuite))
}

func TestSettingsPutAlarm(t *testing.T) {
	var st band.Settings
	st.PutAlarm(codec.Alarm{ID: 3})
	st.PutAlarm(codec.Alarm{ID: 1})
	st.PutAlarm(codec.Alarm{ID: 3, Enabled: true})

	if assert.Len(t, st.Alarms, 2) {
		assert.Equal(t, 1, st.Alarms[0].ID)
		assert.True(t, st.Alarms[1].Enabled, "MUST replace an existing slot")
	}
}
