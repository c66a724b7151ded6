package main

import (
	"context"
	"errors"

	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/broker"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/store"
	"github.com/srg/bandctl/internal/weather"
)

// Command-level errors
var (
	ErrNoBands       = errors.New("no bands paired yet; run 'bandctl band add' first")
	ErrAmbiguousBand = errors.New("several bands are paired; pick one with --band")
)

// FormatUserError turns errors from the lower layers into one line a user
// can act on. Unknown errors are printed as they are.
func FormatUserError(err error) string {
	var notFound *device.NotFoundError
	switch {
	case errors.Is(err, device.ErrNotInitialized):
		return "Bluetooth is not available. Is it turned on, and does bandctl have permission to use it?"
	case errors.Is(err, session.ErrAdvertisementTimeout):
		return "the band did not show up. Keep it close and make sure no phone app holds the connection."
	case errors.Is(err, device.ErrNotReachable):
		return "the band is not reachable. Keep it close and make sure no phone app holds the connection."
	case errors.Is(err, device.ErrNotConnected):
		return "the connection to the band was lost: " + err.Error()
	case errors.Is(err, auth.ErrIncorrectKey):
		return "the band rejected the auth key. Check the key stored for this band."
	case errors.Is(err, auth.ErrInvalidKey):
		return "invalid auth key: expected 32 hex characters"
	case errors.Is(err, store.ErrNotFound):
		return "no such band; see 'bandctl band list'"
	case errors.Is(err, broker.ErrNoDevice):
		return "no band found nearby. Is it awake and not connected to a phone?"
	case errors.Is(err, weather.ErrCityNotFound):
		return err.Error()
	case errors.As(err, &notFound):
		return "this band does not support the operation (" + notFound.Error() + ")"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	}
	return err.Error()
}
