package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/groutine"
)

// ErrAdvertisementTimeout is returned when an unreachable peripheral does not
// advertise again within Options.AdvertisementTimeout.
var ErrAdvertisementTimeout = errors.New("timed out waiting for device advertisement")

// Options configures a Session
type Options struct {
	AdvertisementTimeout time.Duration `default:"10s"`
}

// Session owns the connection lifecycle of one peripheral together with the
// service, characteristic and descriptor handles resolved on that connection.
// A cached handle is only served while the connection it was resolved on is
// still open.
type Session struct {
	central device.Central
	handle  device.Handle
	logger  *logrus.Logger
	opts    Options

	mu          sync.Mutex
	client      device.Client
	monitorStop chan struct{}
	monitorDone <-chan struct{}

	cache atomic.Pointer[handleCache]
	slot  chan struct{}
}

// New creates a disconnected Session for handle. Zero-valued options take defaults.
func New(central device.Central, handle device.Handle, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)

	s := &Session{
		central: central,
		handle:  handle,
		logger:  logger,
		opts:    opts,
		slot:    make(chan struct{}, 1),
	}
	s.cache.Store(newHandleCache())
	return s
}

// Handle returns the peripheral identity this session drives
func (s *Session) Handle() device.Handle {
	return s.handle
}

// Logger returns the session logger, shared by the protocols built on it
func (s *Session) Logger() *logrus.Logger {
	return s.logger
}

// Connected reports whether the session currently holds an open connection
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// CacheStats reports the current handle cache population
func (s *Session) CacheStats() Stats {
	return s.cache.Load().stats()
}

// InvalidateCache drops every cached handle at once.
func (s *Session) InvalidateCache() {
	s.cache.Store(newHandleCache())
	s.logger.WithField("address", s.handle.Addr()).Debug("Handle cache invalidated")
}

// ConnectIfNeeded opens the connection unless one is already open. With force
// set any existing connection is dropped and a new one is established.
//
// A peripheral reported as not reachable is waited for through its next
// advertisement when the central supports it; the wait is bounded by
// Options.AdvertisementTimeout and fails with ErrAdvertisementTimeout.
func (s *Session) ConnectIfNeeded(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx, force)
}

func (s *Session) connectLocked(ctx context.Context, force bool) error {
	if s.client != nil {
		if !force {
			return nil
		}
		_ = s.dropLocked()
	}

	address := s.handle.Addr()
	s.logger.WithFields(logrus.Fields{
		"address": address,
		"forced":  force,
	}).Info("Connecting to band...")

	client, err := s.central.Dial(ctx, address)
	if err != nil {
		watcher, canWatch := s.central.(device.AdvertisementWatcher)
		if !canWatch || !errors.Is(device.NormalizeError(err), device.ErrNotReachable) {
			s.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   err,
			}).Error("Failed to connect")
			return err
		}

		s.logger.WithFields(logrus.Fields{
			"address": address,
			"timeout": s.opts.AdvertisementTimeout,
		}).Info("Band not reachable, waiting for its next advertisement...")

		if err := s.awaitAdvertisement(ctx, watcher, address); err != nil {
			return err
		}
		if client, err = s.central.Dial(ctx, address); err != nil {
			return err
		}
	}

	s.client = client
	s.InvalidateCache()

	stop := make(chan struct{})
	s.monitorStop = stop
	s.monitorDone = groutine.Go(context.Background(), "session-monitor:"+address, func(context.Context) {
		select {
		case <-client.Disconnected():
			s.connectionLost(client)
		case <-stop:
		}
	})

	s.logger.WithField("address", address).Info("Connected")
	return nil
}

func (s *Session) awaitAdvertisement(ctx context.Context, watcher device.AdvertisementWatcher, address string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.AdvertisementTimeout)
	defer cancel()

	err := watcher.WaitForAdvertisement(waitCtx, address)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s did not advertise within %s", ErrAdvertisementTimeout, address, s.opts.AdvertisementTimeout)
	default:
		return err
	}
}

// connectionLost clears state after the peer dropped the link on its own
func (s *Session) connectionLost(client device.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != client {
		return
	}
	s.client = nil
	s.monitorStop = nil
	s.monitorDone = nil
	s.InvalidateCache()
	s.logger.WithField("address", s.handle.Addr()).Warn("Connection lost")
}

// dropLocked closes the current connection, ignoring errors from a link that is already gone
func (s *Session) dropLocked() error {
	client := s.client
	s.client = nil
	if s.monitorStop != nil {
		close(s.monitorStop)
		s.monitorStop = nil
	}
	s.monitorDone = nil
	s.InvalidateCache()

	if err := client.Disconnect(); err != nil && !errors.Is(device.NormalizeError(err), device.ErrNotConnected) {
		return err
	}
	return nil
}

// Disconnect closes the connection and waits for its link monitor to exit.
// It is a no-op when not connected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return nil
	}
	s.logger.WithField("address", s.handle.Addr()).Info("Disconnecting")
	monitor := s.monitorDone
	err := s.dropLocked()
	s.mu.Unlock()

	// the monitor may be waiting on mu in connectionLost, so wait unlocked
	if monitor != nil {
		<-monitor
	}
	return err
}

// Acquire takes the session's single conversation slot. Protocol exchanges
// that listen to notifications must hold it so that listeners on the same
// characteristic never interleave. The returned release func is idempotent.
func (s *Session) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.slot }) }, nil
}

// live returns the open client and the cache bound to it, connecting first if needed
func (s *Session) live(ctx context.Context) (device.Client, *handleCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		if err := s.connectLocked(ctx, true); err != nil {
			return nil, nil, err
		}
	}
	return s.client, s.cache.Load(), nil
}

// current returns the open client without connecting
func (s *Session) current() (device.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, device.ErrNotConnected
	}
	return s.client, nil
}
