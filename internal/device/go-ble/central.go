package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/examples/lib/dev"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
)

// DefaultConnectTimeout bounds a single dial attempt when the caller sets none
const DefaultConnectTimeout = 30 * time.Second

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (ble.Device, error) {
	return dev.NewDevice("default")
}

// hci is the part of ble.Device the central drives
type hci interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
}

// Central is the go-ble backed implementation of device.Central,
// device.Scanner and device.AdvertisementWatcher.
type Central struct {
	hci            hci
	dial           func(ctx context.Context, a ble.Addr) (gattClient, error)
	logger         *logrus.Logger
	connectTimeout time.Duration
}

// NewCentral opens the default HCI device via DeviceFactory.
func NewCentral(connectTimeout time.Duration, logger *logrus.Logger) (*Central, error) {
	d, err := DeviceFactory()
	if err != nil {
		logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(d)
	return newCentral(d, connectTimeout, logger), nil
}

func newCentral(h hci, connectTimeout time.Duration, logger *logrus.Logger) *Central {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Central{
		hci: h,
		dial: func(ctx context.Context, a ble.Addr) (gattClient, error) {
			cln, err := h.Dial(ctx, a)
			if err != nil {
				return nil, err
			}
			return cln, nil
		},
		logger:         logger,
		connectTimeout: connectTimeout,
	}
}

// Dial connects to the peripheral at address. A dial that runs out of its own
// connect timeout while ctx is still alive is reported as ErrNotReachable.
func (c *Central) Dial(ctx context.Context, address string) (device.Client, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": c.connectTimeout,
	}).Debug("Dialing BLE device...")

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	client, err := c.dial(dialCtx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Debug("Failed to dial BLE device")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no connection to %s within %s", device.ErrNotReachable, address, c.connectTimeout)
		}
		return nil, NormalizeError(fmt.Errorf("failed to connect to device with address %q: %w", address, err))
	}

	c.logger.WithField("address", address).Info("Connected to BLE device")
	return newClient(client, address, c.logger), nil
}

// Scan reports every advertisement until ctx is done.
// Cancellation is a normal end of the scan and is not returned as an error.
func (c *Central) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := c.hci.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return NormalizeError(err)
}

// WaitForAdvertisement scans until the peripheral at address is seen or ctx is done.
func (c *Central) WaitForAdvertisement(ctx context.Context, address string) error {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var seen atomic.Bool
	err := c.hci.Scan(scanCtx, false, func(adv ble.Advertisement) {
		if strings.EqualFold(adv.Addr().String(), address) {
			if seen.CompareAndSwap(false, true) {
				c.logger.WithFields(logrus.Fields{
					"address": address,
					"rssi":    adv.RSSI(),
				}).Debug("Peripheral is advertising")
			}
			cancel()
		}
	})

	switch {
	case seen.Load():
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return NormalizeError(err)
	default:
		return fmt.Errorf("%w: scan ended without an advertisement from %s", device.ErrNotReachable, address)
	}
}
