// Package auth implements the band's encrypted challenge-response
// authentication.
package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/uuids"
)

// Authenticate runs one handshake with key over the auth characteristic.
// It returns nil once the band accepts the key. The notification
// subscription is always released, whatever the outcome.
func Authenticate(ctx context.Context, s *session.Session, key Key) error {
	logger := s.Logger().WithField("address", s.Handle().Addr())

	if err := s.ConnectIfNeeded(ctx, false); err != nil {
		return err
	}
	sub, err := s.Subscribe(ctx, uuids.ServiceBand2, uuids.CharAuth)
	if err != nil {
		return fmt.Errorf("enable auth notifications: %w", err)
	}
	defer sub.Close()

	hs := NewHandshake(key)
	if err := s.Write(ctx, uuids.ServiceBand2, uuids.CharAuth, hs.Start(), false); err != nil {
		return fmt.Errorf("request challenge: %w", err)
	}
	logger.Debug("Auth challenge requested")

	for !hs.Done() {
		n, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		reply, ignored := hs.Handle(n.Value)
		if ignored {
			logger.WithField("frame", fmt.Sprintf("% x", n.Value)).Warn("Ignoring unexpected auth frame")
			continue
		}
		logger.WithField("state", hs.State()).Debug("Auth frame handled")

		if reply != nil {
			if err := s.Write(ctx, uuids.ServiceBand2, uuids.CharAuth, reply, false); err != nil {
				return fmt.Errorf("send challenge response: %w", err)
			}
		}
	}

	if err := hs.Err(); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Error("Authentication failed")
		return err
	}
	logger.Info("Authenticated")
	return nil
}
