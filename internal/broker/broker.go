// Package broker discovers bands over the air and hands out device handles
// for them.
package broker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// ErrNoDevice is returned by Select when the scan found nothing
var ErrNoDevice = errors.New("no band found")

// DefaultEventBuffer bounds the event stream; older events are dropped when full
const DefaultEventBuffer = 100

type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

func (t EventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

// Candidate is a band seen during a scan
type Candidate struct {
	Handle   device.Handle `json:"handle"`
	RSSI     int           `json:"rssi"`
	LastSeen time.Time     `json:"last_seen"`
}

type Event struct {
	Type      EventType
	Candidate Candidate
}

// Options configures a scan. Services defaults to the primary band service.
type Options struct {
	Duration        time.Duration `default:"10s"`
	AllowDuplicates bool
	Services        []string
	AllowList       []string
	BlockList       []string
}

// Broker scans for bands. One Broker runs one scan at a time.
type Broker struct {
	scanner device.Scanner
	logger  *logrus.Logger
	events  *ringChannel[Event]
	now     func() time.Time
}

func New(scanner device.Scanner, logger *logrus.Logger) *Broker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Broker{
		scanner: scanner,
		logger:  logger,
		events:  newRingChannel[Event](DefaultEventBuffer),
		now:     time.Now,
	}
}

// Events streams discoveries as they happen. The channel is never closed.
func (b *Broker) Events() <-chan Event {
	return b.events.C()
}

// Scan listens for opts.Duration (or until ctx is done) and returns every
// matching band, strongest signal first.
func (b *Broker) Scan(ctx context.Context, opts *Options) ([]Candidate, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	defaults.SetDefaults(&o)
	if len(o.Services) == 0 {
		o.Services = []string{uuids.ServiceBand1}
	}

	found := hashmap.New[string, Candidate]()

	scanCtx := ctx
	if o.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, o.Duration)
		defer cancel()
	}

	b.logger.WithFields(logrus.Fields{
		"duration": o.Duration,
		"services": o.Services,
	}).Info("Scanning for bands...")

	err := b.scanner.Scan(scanCtx, o.AllowDuplicates, func(adv device.Advertisement) {
		b.handleAdvertisement(found, &o, adv)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([]Candidate, 0, found.Len())
	found.Range(func(_ string, c Candidate) bool {
		out = append(out, c)
		return true
	})
	slices.SortFunc(out, func(a, c Candidate) int {
		if a.RSSI != c.RSSI {
			return c.RSSI - a.RSSI
		}
		return strings.Compare(a.Handle.ID, c.Handle.ID)
	})

	b.logger.WithField("band_count", len(out)).Info("Scan completed")
	return out, nil
}

// Select scans and returns the handle of the strongest band
func (b *Broker) Select(ctx context.Context, opts *Options) (device.Handle, error) {
	found, err := b.Scan(ctx, opts)
	if err != nil {
		return device.Handle{}, err
	}
	if len(found) == 0 {
		return device.Handle{}, ErrNoDevice
	}
	return found[0].Handle, nil
}

func (b *Broker) handleAdvertisement(found *hashmap.Map[string, Candidate], opts *Options, adv device.Advertisement) {
	addr := strings.ToUpper(adv.Addr())

	prev, existing := found.Get(addr)
	if !existing && !include(adv, addr, opts) {
		return
	}

	c := Candidate{
		Handle:   device.Handle{ID: addr, Address: addr, Name: adv.LocalName()},
		RSSI:     adv.RSSI(),
		LastSeen: b.now(),
	}
	if c.Handle.Name == "" {
		c.Handle.Name = prev.Handle.Name
	}
	found.Set(addr, c)

	event := Event{Type: EventUpdated, Candidate: c}
	if !existing {
		event.Type = EventNew
		b.logger.WithFields(logrus.Fields{
			"name":    c.Handle.Name,
			"address": addr,
			"rssi":    c.RSSI,
		}).Info("Discovered band")
	}
	if b.events.send(event) {
		b.logger.WithField("dropped", b.events.Dropped()).Debug("Event buffer full, dropped oldest event")
	}
}

// include applies the block list, then the allow list, then the service filter
func include(adv device.Advertisement, addr string, opts *Options) bool {
	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 && !slices.ContainsFunc(opts.AllowList, func(a string) bool {
		return strings.EqualFold(addr, a)
	}) {
		return false
	}

	for _, want := range opts.Services {
		for _, got := range adv.Services() {
			if uuids.Equal(want, got) {
				return true
			}
		}
	}
	return false
}
