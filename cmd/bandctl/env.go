package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/band"
	"github.com/srg/bandctl/internal/device"
	goble "github.com/srg/bandctl/internal/device/go-ble"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/store"
	"github.com/srg/bandctl/internal/weather"
	"github.com/srg/bandctl/pkg/config"
)

// Central is what the commands need from the Bluetooth stack
type Central interface {
	device.Central
	device.Scanner
}

// CentralFactory opens the Bluetooth stack. Tests replace it.
var CentralFactory = func(cfg *config.Config, logger *logrus.Logger) (Central, error) {
	return goble.NewCentral(cfg.ConnectTimeout, logger)
}

// WeatherFactory builds the forecast client. Tests replace it.
var WeatherFactory = func(logger *logrus.Logger) *weather.Client {
	return weather.NewClient(logger)
}

// env is what every command runs with: configuration, logger and store.
// The Bluetooth stack is opened on first use only.
type env struct {
	cmd     *cobra.Command
	cfg     *config.Config
	logger  *logrus.Logger
	loc     *time.Location
	store   *store.Store
	central Central
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.ResolvedStorePath(), logger)
	if err != nil {
		return nil, err
	}
	return &env{cmd: cmd, cfg: cfg, logger: logger, loc: loc, store: st}, nil
}

func (e *env) out() io.Writer {
	return e.cmd.OutOrStdout()
}

func (e *env) Central() (Central, error) {
	if e.central != nil {
		return e.central, nil
	}
	c, err := CentralFactory(e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bluetooth: %w", err)
	}
	e.central = c
	return c, nil
}

// selected resolves --band against the store
func (e *env) selected() (store.BandProfile, error) {
	sel, _ := e.cmd.Flags().GetString("band")
	return e.lookup(sel)
}

// lookup accepts an id, a MAC or a nickname. An empty selector picks the
// only paired band.
func (e *env) lookup(sel string) (store.BandProfile, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		bands := e.store.ListBands()
		switch len(bands) {
		case 0:
			return store.BandProfile{}, ErrNoBands
		case 1:
			return bands[0], nil
		}
		return store.BandProfile{}, ErrAmbiguousBand
	}
	if id, err := strconv.Atoi(sel); err == nil {
		return e.store.GetBand(id)
	}
	if strings.Contains(sel, ":") {
		return e.store.BandByMAC(sel)
	}
	for _, p := range e.store.ListBands() {
		if strings.EqualFold(p.Nickname, sel) {
			return p, nil
		}
	}
	return e.store.BandByDeviceID(sel)
}

func (e *env) bandOptions(key *auth.Key) band.Options {
	return band.Options{
		Key:         key,
		Location:    e.loc,
		StepsLayout: e.cfg.Steps,
		Fetch: activity.Options{
			BatchSize: e.cfg.BatchSize,
			PageDelay: e.cfg.PageDelay,
			Location:  e.loc,
		},
	}
}

// openHandle wraps a device handle and key into a band
func (e *env) openHandle(h device.Handle, key *auth.Key) (*band.Band, error) {
	central, err := e.Central()
	if err != nil {
		return nil, err
	}
	s := session.New(central, h, session.Options{AdvertisementTimeout: e.cfg.AdvertisementTimeout}, e.logger)
	return band.New(s, e.bandOptions(key)), nil
}

// open returns the band of a stored profile
func (e *env) open(p store.BandProfile) (*band.Band, error) {
	var key *auth.Key
	if p.AuthKey != "" {
		k, err := auth.ParseKey(p.AuthKey)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", p.ID, err)
		}
		key = &k
	}
	return e.openHandle(handleOf(p), key)
}

// openSelected opens and connects the --band band for a run of operations
func (e *env) openSelected(ctx context.Context) (*band.Band, store.BandProfile, error) {
	p, err := e.selected()
	if err != nil {
		return nil, p, err
	}
	b, err := e.open(p)
	if err != nil {
		return nil, p, err
	}
	if err := b.Open(ctx); err != nil {
		return nil, p, err
	}
	return b, p, nil
}

func handleOf(p store.BandProfile) device.Handle {
	id := p.DeviceID
	if id == "" {
		id = p.MAC
	}
	return device.Handle{ID: id, Name: p.Nickname}
}

// updateSettings applies fn to the stored snapshot of the band's settings
func (e *env) updateSettings(p store.BandProfile, fn func(*band.Settings)) error {
	if p.Settings == nil {
		p.Settings = &band.Settings{}
	}
	fn(p.Settings)
	return e.store.UpdateBand(p)
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is cancelled on Ctrl+C
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// format is the --format flag, or the configured output format when unset
func (e *env) format() (string, error) {
	format, _ := e.cmd.Flags().GetString("format")
	if format == "" {
		format = e.cfg.OutputFormat
	}
	return format, checkFormat(format)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
}

// parseWhen accepts RFC3339, "2006-01-02T15:04", "2006-01-02" in loc, or a
// duration meaning that long before now.
func parseWhen(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use 2006-01-02[T15:04], RFC3339 or a duration like 24h", s)
}
