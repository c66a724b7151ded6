package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// DefaultNotificationBuffer is the queue depth between the transport and a subscriber
const DefaultNotificationBuffer = 256

// Notification is one value pushed by the peripheral
type Notification struct {
	Characteristic string // normalized characteristic UUID
	Value          []byte
}

// Subscription delivers notifications of one or more characteristics, merged
// into a single channel in arrival order. Close stops notifications on the
// peripheral and delivery to the channel together.
type Subscription struct {
	client device.Client
	chars  []device.Characteristic
	logger *logrus.Logger

	ch     chan Notification
	done   chan struct{}
	once   sync.Once
	closeE error
}

// Subscribe enables notifications on the given characteristics of one
// service. Either all characteristics are subscribed or none is.
func (s *Session) Subscribe(ctx context.Context, serviceID string, charIDs ...string) (*Subscription, error) {
	if len(charIDs) == 0 {
		return nil, fmt.Errorf("no characteristics to subscribe to")
	}

	chars := make([]device.Characteristic, 0, len(charIDs))
	for _, id := range charIDs {
		char, err := s.GetCharacteristic(ctx, serviceID, id)
		if err != nil {
			return nil, err
		}
		if !char.CanNotify() {
			return nil, fmt.Errorf("characteristic %s: %w: notifications", id, device.ErrUnsupported)
		}
		chars = append(chars, char)
	}

	client, err := s.current()
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		client: client,
		logger: s.logger,
		ch:     make(chan Notification, DefaultNotificationBuffer),
		done:   make(chan struct{}),
	}

	for _, char := range chars {
		uuid := uuids.Normalize(char.UUID())
		if err := client.Subscribe(char, sub.deliver(uuid)); err != nil {
			s.logger.WithFields(logrus.Fields{
				"char_uuid": uuid,
				"error":     err,
			}).Error("Failed to subscribe")
			_ = sub.Close()
			return nil, fmt.Errorf("subscribe %s: %w", uuid, err)
		}
		sub.chars = append(sub.chars, char)
		s.logger.WithField("char_uuid", uuid).Debug("Notifications enabled")
	}

	return sub, nil
}

func (sub *Subscription) deliver(uuid string) device.NotificationHandler {
	return func(data []byte) {
		n := Notification{Characteristic: uuid, Value: append([]byte(nil), data...)}
		select {
		case <-sub.done:
		case sub.ch <- n:
		}
	}
}

// C returns the notification channel. It is never closed; select on Done as well.
func (sub *Subscription) C() <-chan Notification {
	return sub.ch
}

// Done is closed once the subscription has been closed
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Lost is closed when the connection carrying the subscription goes away
func (sub *Subscription) Lost() <-chan struct{} {
	return sub.client.Disconnected()
}

// Close disables notifications and stops delivery. Safe to call more than once.
func (sub *Subscription) Close() error {
	sub.once.Do(func() {
		close(sub.done)

		var errs []error
		for _, char := range sub.chars {
			if err := sub.client.Unsubscribe(char); err != nil && !errors.Is(device.NormalizeError(err), device.ErrNotConnected) {
				errs = append(errs, fmt.Errorf("unsubscribe %s: %w", char.UUID(), err))
			}
		}
		sub.closeE = errors.Join(errs...)
		if sub.closeE != nil {
			sub.logger.WithField("error", sub.closeE).Warn("Failed to disable notifications")
		}
	})
	return sub.closeE
}

// Next waits for the next notification. It fails with ErrNotConnected when
// the link drops and with the context error when ctx is done.
func (sub *Subscription) Next(ctx context.Context) (Notification, error) {
	// Queued values win over a concurrent disconnect
	select {
	case n := <-sub.ch:
		return n, nil
	default:
	}

	select {
	case n := <-sub.ch:
		return n, nil
	case <-sub.done:
		return Notification{}, fmt.Errorf("subscription closed")
	case <-sub.Lost():
		return Notification{}, fmt.Errorf("%w: link lost while waiting for notification", device.ErrNotConnected)
	case <-ctx.Done():
		return Notification{}, ctx.Err()
	}
}
