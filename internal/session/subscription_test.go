package session_test

import (
	"context"
	"time"

	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

func (s *SessionTestSuite) TestSubscriptionMergesAndCloses() {
	// GOAL: Verify notifications of several characteristics arrive on one channel
	// and Close disables them on the peripheral
	//
	// TEST SCENARIO: subscribe battery on FEE0 → notify → Next returns it → Close → unsubscribed

	sub, err := s.s.Subscribe(s.ctx, uuids.ServiceBand1, uuids.CharBattery)
	s.Require().NoError(err)
	s.True(s.band.Subscribed(uuids.CharBattery))

	s.True(s.band.Notify(uuids.CharBattery, []byte{0x01, 0x02}))

	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	n, err := sub.Next(ctx)
	s.Require().NoError(err)
	s.Equal(uuids.Normalize(uuids.CharBattery), n.Characteristic)
	s.Equal([]byte{0x01, 0x02}, n.Value)

	s.NoError(sub.Close())
	s.NoError(sub.Close(), "MUST be safe to close twice")
	s.False(s.band.Subscribed(uuids.CharBattery), "MUST disable notifications on close")
	s.False(s.band.Notify(uuids.CharBattery, []byte{0x03}))
}

func (s *SessionTestSuite) TestSubscribeRollsBackOnFailure() {
	_, err := s.s.Subscribe(s.ctx, uuids.ServiceBand1, uuids.CharBattery, uuids.CharConfiguration)
	s.ErrorIs(err, device.ErrUnsupported, "MUST refuse characteristics without notify support")
	s.False(s.band.Subscribed(uuids.CharBattery), "MUST NOT leave earlier characteristics subscribed")
}

func (s *SessionTestSuite) TestSubscriptionNextReportsLostLink() {
	sub, err := s.s.Subscribe(s.ctx, uuids.ServiceBand2, uuids.CharAuth)
	s.Require().NoError(err)
	defer sub.Close()

	s.band.Drop()

	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	_, err = sub.Next(ctx)
	s.ErrorIs(err, device.ErrNotConnected, "MUST report the dropped link")
}
