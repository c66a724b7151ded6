package activity

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/groutine"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/uuids"
)

// ErrInvalidRange is returned when the fetch window is empty
var ErrInvalidRange = errors.New("invalid activity range")

// samplesPerNotification is the page-counter stride of the minute offset
const samplesPerNotification = 4

var (
	respStartOfPacket = []byte{0x10, 0x01, 0x01}
	respEndOfPage     = []byte{0x10, 0x02, 0x01}
	respHardStop      = []byte{0x10, 0x02, 0x04}

	cmdContinue = []byte{0x02}
)

// Options tunes a Fetcher. Zero values take defaults.
type Options struct {
	BatchSize int           `default:"1000"`
	PageDelay time.Duration `default:"1s"`
	// Location is the zone of the band's clock; nil means time.Local
	Location *time.Location
}

// Fetcher retrieves minute samples over the band's paginated fetch protocol
type Fetcher struct {
	s      *session.Session
	opts   Options
	logger *logrus.Logger
}

func NewFetcher(s *session.Session, opts Options) *Fetcher {
	defaults.SetDefaults(&opts)
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Fetcher{s: s, opts: opts, logger: s.Logger()}
}

// fetchRun is the state of one Run
type fetchRun struct {
	*Fetcher
	sink Sink
	end  time.Time
	tz   []byte

	packetStart time.Time
	hasPacket   bool
	page        int
	pageSamples int
	last        time.Time
	buffer      []Sample
	samples     int
}

// Run fetches the samples in [start, end). Every kept sample is passed to
// sink.Sample, and hourly aggregates to sink.Batch whenever BatchSize
// samples have been buffered and once more before Run returns, whatever the
// reason. Run returns when the band signals the end of the range, an empty
// page or a hard stop, when the link drops, or when ctx is done.
func (f *Fetcher) Run(ctx context.Context, start, end time.Time, sink Sink) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	logger := f.logger.WithFields(logrus.Fields{
		"address": f.s.Handle().Addr(),
		"start":   start.Format(time.RFC3339),
		"end":     end.Format(time.RFC3339),
	})

	current, err := f.s.Read(ctx, uuids.ServiceBand1, uuids.CharCurrentTime)
	if err != nil {
		return fmt.Errorf("read band time: %w", err)
	}
	tz, err := codec.TimezoneBytes(current)
	if err != nil {
		return fmt.Errorf("read band time: %w", err)
	}

	sub, err := f.s.Subscribe(ctx, uuids.ServiceBand1, uuids.CharFetch, uuids.CharActivityData)
	if err != nil {
		return fmt.Errorf("enable activity notifications: %w", err)
	}
	defer sub.Close()

	run := &fetchRun{Fetcher: f, sink: sink, end: end, tz: tz}
	defer run.flush()
	if err := run.request(ctx, start); err != nil {
		return err
	}
	logger.Info("Activity fetch started")

	fetchUUID := uuids.Normalize(uuids.CharFetch)
	for {
		n, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if n.Characteristic != fetchUUID {
			run.onData(n.Value)
			continue
		}

		done, err := run.onControl(ctx, n.Value)
		if err != nil {
			return err
		}
		if done {
			run.flush()
			if err := sub.Close(); err != nil {
				logger.WithField("error", err).Warn("Failed to stop activity notifications")
			}
			logger.WithField("samples", run.samples).Info("Activity fetch complete")
			return nil
		}
	}
}

// request asks for the page starting at from
func (r *fetchRun) request(ctx context.Context, from time.Time) error {
	from = from.In(r.opts.Location)

	cmd := []byte{0x01, 0x01}
	cmd = binary.LittleEndian.AppendUint16(cmd, uint16(from.Year()))
	cmd = append(cmd, byte(from.Month()), byte(from.Day()), byte(from.Hour()), byte(from.Minute()))
	cmd = append(cmd, r.tz...)

	r.pageSamples = 0
	r.logger.WithField("from", from.Format(time.RFC3339)).Debug("Requesting activity page")
	if err := r.s.Write(ctx, uuids.ServiceBand1, uuids.CharFetch, cmd, false); err != nil {
		return fmt.Errorf("request activity page: %w", err)
	}
	return nil
}

// onControl handles a fetch channel notification; done marks completion
func (r *fetchRun) onControl(ctx context.Context, b []byte) (done bool, err error) {
	if len(b) < 3 {
		r.logger.WithField("frame", fmt.Sprintf("% x", b)).Warn("Ignoring short fetch response")
		return false, nil
	}

	switch prefix := b[:3]; {
	case bytes.Equal(prefix, respStartOfPacket):
		if len(b) < 13 {
			r.logger.WithField("frame", fmt.Sprintf("% x", b)).Warn("Ignoring truncated start of packet")
			return false, nil
		}
		year := int(binary.LittleEndian.Uint16(b[7:9]))
		r.packetStart = time.Date(year, time.Month(b[9]), int(b[10]), int(b[11]), int(b[12]), 0, 0, r.opts.Location)
		r.hasPacket = true
		r.page = 0
		r.pageSamples = 0
		r.logger.WithField("packet_start", r.packetStart.Format(time.RFC3339)).Debug("Start of activity packet")

		if err := r.s.Write(ctx, uuids.ServiceBand1, uuids.CharFetch, cmdContinue, false); err != nil {
			return false, fmt.Errorf("continue activity fetch: %w", err)
		}
		return false, nil

	case bytes.Equal(prefix, respEndOfPage):
		if r.pageSamples == 0 {
			r.logger.Debug("Empty activity page, nothing newer on the band")
			return true, nil
		}
		if !r.last.Before(r.end.Add(-time.Minute)) {
			return true, nil
		}
		next := r.last.Add(time.Minute)
		r.logger.WithField("next", next.Format(time.RFC3339)).Debug("End of page, requesting next")

		timer := time.NewTimer(r.opts.PageDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return false, r.request(ctx, next)

	case bytes.Equal(prefix, respHardStop):
		r.logger.Info("Band stopped the activity transfer")
		return true, nil

	default:
		r.logger.WithField("frame", fmt.Sprintf("% x", b)).Warn("Ignoring unknown fetch response")
		return false, nil
	}
}

// onData handles one bulk notification: a reference byte and 4-byte samples
func (r *fetchRun) onData(b []byte) {
	if len(b)%sampleSize != 1 {
		r.logger.WithField("len", len(b)).Warn("Ignoring activity data of invalid length")
		return
	}
	if !r.hasPacket {
		r.logger.Warn("Ignoring activity data before start of packet")
		return
	}

	count := (len(b) - 1) / sampleSize
	for i := 0; i < count; i++ {
		at := r.packetStart.Add(time.Duration(r.page*samplesPerNotification+i) * time.Minute)
		r.last = at
		r.pageSamples++
		if !at.Before(r.end) {
			continue
		}

		s := decodeSample(b[1+i*sampleSize:], at)
		r.samples++
		r.sink.Sample(s)
		r.buffer = append(r.buffer, s)
		if len(r.buffer) >= r.opts.BatchSize {
			r.flush()
		}
	}
	r.page++
}

func (r *fetchRun) flush() {
	if len(r.buffer) == 0 {
		return
	}
	batch := Aggregate(r.buffer, r.opts.Location)
	r.buffer = r.buffer[:0]
	r.logger.WithField("hours", len(batch)).Debug("Flushing activity batch")
	r.sink.Batch(batch)
}

// Stream runs the fetch in the background and reports it as events
func (f *Fetcher) Stream(ctx context.Context, start, end time.Time) <-chan Event {
	return StreamFunc(ctx, func(ctx context.Context, sink Sink) error {
		return f.Run(ctx, start, end, sink)
	})
}

// StreamFunc runs fn on its own goroutine and turns the sink calls it makes
// into events. The channel is closed after the final EventDone. Sample
// events are dropped once ctx is done; batch and done events are always
// delivered, so the consumer must drain the channel until it is closed.
func StreamFunc(ctx context.Context, fn func(ctx context.Context, sink Sink) error) <-chan Event {
	events := make(chan Event)

	groutine.Go(ctx, "activity-stream", func(ctx context.Context) {
		defer close(events)
		err := fn(ctx, SinkFuncs{
			OnSample: func(s Sample) {
				select {
				case events <- Event{Kind: EventSample, Sample: s}:
				case <-ctx.Done():
				}
			},
			OnBatch: func(b []HourlyAggregate) { events <- Event{Kind: EventBatch, Batch: b} },
		})
		events <- Event{Kind: EventDone, Err: err}
	})
	return events
}
