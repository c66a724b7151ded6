package activity_test

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/testutils"
	"github.com/srg/bandctl/internal/uuids"
	"github.com/stretchr/testify/suite"
)

var day = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// page is what the scripted band answers to one fetch request
type page struct {
	start time.Time
	data  [][]byte
	end   []byte
}

func startAck(t time.Time) []byte {
	b := []byte{0x10, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}
	b = binary.LittleEndian.AppendUint16(b, uint16(t.Year()))
	return append(b, byte(t.Month()), byte(t.Day()), byte(t.Hour()), byte(t.Minute()))
}

// bulk packs n samples with steps = first+i and alternating heart rate 60/61
func bulk(first, n int) []byte {
	b := []byte{0x00}
	for i := 0; i < n; i++ {
		b = append(b, 0x01, 0x20, byte(first+i), byte(60+(first+i)%2))
	}
	return b
}

type collector struct {
	mu      sync.Mutex
	samples []activity.Sample
	batches [][]activity.HourlyAggregate
}

func (c *collector) Sample(s activity.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
}

func (c *collector) Batch(b []activity.HourlyAggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
}

type FetchTestSuite struct {
	suite.Suite
	band  *testutils.FakePeripheral
	s     *session.Session
	pages []page
	cur   page
	sink  *collector
}

func (s *FetchTestSuite) SetupTest() {
	s.band = testutils.NewFakePeripheral("C8:0F:10:11:12:13").
		WithService(uuids.ServiceBand1).
		WithCharacteristic(uuids.CharCurrentTime, "read,write", codec.EncodeCurrentTime(day.Add(12*time.Hour))).
		WithCharacteristic(uuids.CharFetch, "write,notify", nil).
		WithCharacteristic(uuids.CharActivityData, "notify", nil)
	s.s = session.New(s.band, device.Handle{ID: "1", Address: "C8:0F:10:11:12:13"}, session.Options{}, testutils.NewTestLogger(s.T()))
	s.pages = nil
	s.sink = &collector{}

	s.band.OnWrite(uuids.CharFetch, func(p *testutils.FakePeripheral, data []byte) {
		switch data[0] {
		case 0x01:
			if len(s.pages) == 0 {
				p.Notify(uuids.CharFetch, []byte{0x10, 0x02, 0x04})
				return
			}
			s.cur, s.pages = s.pages[0], s.pages[1:]
			p.Notify(uuids.CharFetch, startAck(s.cur.start))
		case 0x02:
			for _, d := range s.cur.data {
				p.Notify(uuids.CharActivityData, d)
			}
			p.Notify(uuids.CharFetch, s.cur.end)
		}
	})
}

func (s *FetchTestSuite) TearDownTest() {
	s.NoError(s.s.Disconnect())
}

func (s *FetchTestSuite) fetcher(batch int) *activity.Fetcher {
	return activity.NewFetcher(s.s, activity.Options{BatchSize: batch, PageDelay: time.Millisecond, Location: time.UTC})
}

func (s *FetchTestSuite) run(start, end time.Time, batch int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.fetcher(batch).Run(ctx, start, end, s.sink)
}

var endOfPage = []byte{0x10, 0x02, 0x01}

func (s *FetchTestSuite) TestSingleHour() {
	// GOAL: Verify one page of 60 minute samples yields exactly one hourly aggregate
	//
	// TEST SCENARIO: [00:00, 01:00) with one bulk notification of 60 samples at hour 0
	// → one aggregate, completion on end of page

	s.pages = []page{{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(time.Hour), 1000))

	s.Len(s.sink.samples, 60, "MUST report every sample")
	s.Require().Len(s.sink.batches, 1, "MUST flush once at completion")
	s.Require().Len(s.sink.batches[0], 1)

	agg := s.sink.batches[0][0]
	s.Equal(day, agg.Time)
	s.Equal(59*60/2, agg.TotalSteps)
	s.InDelta(60.5, agg.AverageHeartRate, 1e-9)

	writes := s.band.Writes(uuids.CharFetch)
	s.Require().Len(writes, 2, "MUST NOT request a second page")
	s.Equal([]byte{0x01, 0x01, 0xe8, 0x07, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}, writes[0], "MUST encode start date and band timezone")
	s.Equal([]byte{0x02}, writes[1], "MUST continue after start of packet")

	s.False(s.band.Subscribed(uuids.CharFetch), "MUST stop fetch notifications")
	s.False(s.band.Subscribed(uuids.CharActivityData), "MUST stop data notifications")
}

func (s *FetchTestSuite) TestSampleTimestampsAndFields() {
	s.pages = []page{{start: day, data: [][]byte{
		{0x00, 0x03, 0x10, 0x05, 0x48, 0x04, 0x20, 0x06, 0x49},
		{0x00, 0x05, 0x30, 0x07, 0x4a},
	}, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(10*time.Minute), 1000))
	s.Require().Len(s.sink.samples, 3)

	s.Equal(activity.Sample{Time: day, Category: 3, Intensity: 0x10, Steps: 5, HeartRate: 0x48}, s.sink.samples[0])
	s.Equal(day.Add(time.Minute), s.sink.samples[1].Time)
	s.Equal(day.Add(4*time.Minute), s.sink.samples[2].Time, "MUST offset by page counter times four")
	s.Equal(7, s.sink.samples[2].Steps)
}

func (s *FetchTestSuite) TestPagination() {
	// GOAL: Verify a page ending before the range end requests the next page one minute past the last sample

	s.pages = []page{
		{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage},
		{start: day.Add(time.Hour), data: [][]byte{bulk(0, 60)}, end: endOfPage},
	}

	s.Require().NoError(s.run(day, day.Add(2*time.Hour), 1000))

	writes := s.band.Writes(uuids.CharFetch)
	s.Require().Len(writes, 4)
	s.Equal([]byte{0x01, 0x01, 0xe8, 0x07, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00}, writes[2], "MUST resume at 01:00")

	s.Len(s.sink.samples, 120)
	s.Require().Len(s.sink.batches, 1)
	s.Require().Len(s.sink.batches[0], 2)
	s.Equal(day, s.sink.batches[0][0].Time)
	s.Equal(day.Add(time.Hour), s.sink.batches[0][1].Time)
}

func (s *FetchTestSuite) TestHardStop() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 30)}, end: []byte{0x10, 0x02, 0x04}}}

	s.Require().NoError(s.run(day, day.Add(24*time.Hour), 1000), "MUST complete normally on hard stop")
	s.Len(s.sink.samples, 30)
	s.Len(s.sink.batches, 1, "MUST flush on hard stop")
	s.Len(s.band.Writes(uuids.CharFetch), 2)
	s.False(s.band.Subscribed(uuids.CharFetch))
}

func (s *FetchTestSuite) TestDiscardsSamplesAtOrAfterEnd() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(30*time.Minute), 1000))
	s.Len(s.sink.samples, 30, "MUST drop samples at or after end")
	s.Equal(day.Add(29*time.Minute), s.sink.samples[29].Time)
	s.Len(s.band.Writes(uuids.CharFetch), 2, "MUST complete since the last sample is past the end")
}

func (s *FetchTestSuite) TestBatchFlushing() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(time.Hour), 25))

	s.Require().Len(s.sink.batches, 3, "MUST flush at 25, 50 and completion")
	s.Equal(25, s.sink.batches[0][0].Samples)
	s.Equal(25, s.sink.batches[1][0].Samples)
	s.Equal(10, s.sink.batches[2][0].Samples)

	total := 0
	for _, b := range s.sink.batches {
		total += b[0].TotalSteps
	}
	s.Equal(59*60/2, total)
}

func (s *FetchTestSuite) TestIgnoresMalformedFrames() {
	s.pages = []page{{start: day, data: [][]byte{
		{0x00, 0x01, 0x02},
		bulk(0, 2),
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
	}, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(2*time.Minute), 1000))
	s.Len(s.sink.samples, 2, "MUST decode only payloads whose length is 1 mod 4")
}

func (s *FetchTestSuite) TestEmptyPageCompletes() {
	s.pages = []page{{start: day, end: endOfPage}}

	s.Require().NoError(s.run(day, day.Add(time.Hour), 1000))
	s.Empty(s.sink.samples)
	s.Empty(s.sink.batches, "MUST NOT flush an empty buffer")
}

func (s *FetchTestSuite) TestEmptyFollowUpPageCompletes() {
	// GOAL: Verify the fetch ends when the band has nothing newer than the last page
	//
	// TEST SCENARIO: one full page, then a page without samples while the range end
	// is far away → completion after the second page, no further requests

	s.pages = []page{
		{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage},
		{start: day.Add(time.Hour), end: endOfPage},
		{start: day.Add(time.Hour), end: endOfPage},
	}

	s.Require().NoError(s.run(day, day.Add(24*time.Hour), 1000))

	s.Len(s.band.Writes(uuids.CharFetch), 4, "MUST stop requesting after an empty page")
	s.Len(s.sink.samples, 60)
	s.Require().Len(s.sink.batches, 1, "MUST flush the buffered samples at completion")
	s.Equal(60, s.sink.batches[0][0].Samples)
}

func (s *FetchTestSuite) TestInvalidRange() {
	s.ErrorIs(s.run(day, day, 1000), activity.ErrInvalidRange)
	s.ErrorIs(s.run(day.Add(time.Hour), day, 1000), activity.ErrInvalidRange)
	s.Zero(s.band.Dials(), "MUST validate before connecting")
}

func (s *FetchTestSuite) TestCancelDuringPageDelay() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f := activity.NewFetcher(s.s, activity.Options{PageDelay: time.Hour, Location: time.UTC})

	err := f.Run(ctx, day, day.Add(2*time.Hour), s.sink)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.False(s.band.Subscribed(uuids.CharFetch), "MUST release notifications on abnormal exit")
	s.Require().Len(s.sink.batches, 1, "MUST flush buffered samples on abnormal exit")
	s.Equal(60, s.sink.batches[0][0].Samples)
}

func (s *FetchTestSuite) TestStreamDeliversBatchAfterCancel() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 60)}, end: endOfPage}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := activity.NewFetcher(s.s, activity.Options{PageDelay: time.Hour, Location: time.UTC})

	samples := 0
	var batches [][]activity.HourlyAggregate
	var last activity.Event
	for ev := range f.Stream(ctx, day, day.Add(2*time.Hour)) {
		switch ev.Kind {
		case activity.EventSample:
			if samples++; samples == 60 {
				cancel()
			}
		case activity.EventBatch:
			batches = append(batches, ev.Batch)
		}
		last = ev
	}

	s.Equal(activity.EventDone, last.Kind)
	s.ErrorIs(last.Err, context.Canceled)
	s.Require().Len(batches, 1, "MUST deliver the final batch even after cancellation")
	s.Equal(60, batches[0][0].Samples)
}

func (s *FetchTestSuite) TestStreamEvents() {
	s.pages = []page{{start: day, data: [][]byte{bulk(0, 3)}, end: endOfPage}}

	var kinds []activity.EventKind
	var last activity.Event
	for ev := range s.fetcher(1000).Stream(context.Background(), day, day.Add(3*time.Minute)) {
		kinds = append(kinds, ev.Kind)
		last = ev
	}

	s.Equal([]activity.EventKind{
		activity.EventSample, activity.EventSample, activity.EventSample,
		activity.EventBatch, activity.EventDone,
	}, kinds, "MUST emit samples, then the batch, then done")
	s.NoError(last.Err)
}

func TestFetchTestSuite(t *testing.T) {
	suite.Run(t, new(FetchTestSuite))
}
