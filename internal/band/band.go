// Package band implements the one-shot command operations of the band on
// top of a session: reads, configuration writes, weather push and activity
// fetch.
package band

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/session"
)

// ErrNoKey is returned by Authenticate when the band was set up without a key
var ErrNoKey = errors.New("no auth key configured for band")

// Options configures a Band
type Options struct {
	// Key authenticates every connection opened by an operation when set
	Key *auth.Key
	// Location is the zone of the band's clock; nil means time.Local
	Location    *time.Location
	StepsLayout codec.StepsLayout
	Fetch       activity.Options
}

// Band runs command operations against one band. Every operation holds the
// session's conversation slot, and an operation that had to open the
// connection closes it again before returning.
type Band struct {
	s      *session.Session
	opts   Options
	logger *logrus.Logger
}

func New(s *session.Session, opts Options) *Band {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.StepsLayout == (codec.StepsLayout{}) {
		opts.StepsLayout = codec.StepsLayout{Steps: 16, Meters: 16, Calories: 16}
	}
	if opts.Fetch.Location == nil {
		opts.Fetch.Location = opts.Location
	}
	return &Band{s: s, opts: opts, logger: s.Logger()}
}

// Session returns the underlying session
func (b *Band) Session() *session.Session {
	return b.s
}

// Open connects and authenticates, keeping the connection for the
// operations that follow until Close.
func (b *Band) Open(ctx context.Context) error {
	release, err := b.s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if b.s.Connected() {
		return nil
	}
	return b.connect(ctx)
}

// Close disconnects the band
func (b *Band) Close() error {
	return b.s.Disconnect()
}

func (b *Band) connect(ctx context.Context) error {
	if err := b.s.ConnectIfNeeded(ctx, false); err != nil {
		return err
	}
	if b.opts.Key == nil {
		return nil
	}
	if err := auth.Authenticate(ctx, b.s, *b.opts.Key); err != nil {
		b.disconnect()
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

func (b *Band) disconnect() {
	if err := b.s.Disconnect(); err != nil {
		b.logger.WithField("error", err).Warn("Failed to disconnect")
	}
}

// do runs fn within the conversation slot on a live connection
func (b *Band) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	release, err := b.s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !b.s.Connected() {
		if err := b.connect(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer b.disconnect()
	}

	b.logger.WithField("op", op).Debug("Running band operation")
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Authenticate runs the challenge-response handshake with the configured key
func (b *Band) Authenticate(ctx context.Context) error {
	if b.opts.Key == nil {
		return ErrNoKey
	}
	release, err := b.s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !b.s.Connected() {
		defer b.disconnect()
	}
	return auth.Authenticate(ctx, b.s, *b.opts.Key)
}
