package auth_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/srg/bandctl/internal/auth"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/session"
	"github.com/srg/bandctl/internal/testutils"
	"github.com/srg/bandctl/internal/uuids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testKey      = "000102030405060708090a0b0c0d0e0f"
	challengeHex = "00112233445566778899aabbccddeeff"
	responseHex  = "69c4e0d86a7b0430d8cdb78070b4c55a"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestParseKey(t *testing.T) {
	k, err := auth.ParseKey("  0x" + testKey + " ")
	require.NoError(t, err)
	assert.Equal(t, testKey, k.String())

	for _, bad := range []string{"", "abc", testKey + "00", "zz0102030405060708090a0b0c0d0e0f"} {
		_, err := auth.ParseKey(bad)
		assert.ErrorIs(t, err, auth.ErrInvalidKey, "MUST reject %q", bad)
	}
}

func TestResponseIsDeterministic(t *testing.T) {
	// GOAL: Verify the challenge response is AES-CBC with zero IV, truncated to one block

	key, err := auth.ParseKey(testKey)
	require.NoError(t, err)

	first, err := auth.Response(key, mustHex(challengeHex))
	require.NoError(t, err)
	second, err := auth.Response(key, mustHex(challengeHex))
	require.NoError(t, err)

	assert.Equal(t, responseHex, hex.EncodeToString(first), "MUST match the AES-128 reference vector")
	assert.Equal(t, first, second, "MUST be deterministic")
	assert.Len(t, first, 16)

	short, err := auth.Response(key, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, short, 16, "MUST truncate padded ciphertext to 16 bytes")
}

func TestHandshakeTransitions(t *testing.T) {
	key, _ := auth.ParseKey(testKey)
	hs := auth.NewHandshake(key)
	assert.Equal(t, auth.Idle, hs.State())

	assert.Equal(t, []byte{0x02, 0x00}, hs.Start())
	assert.Equal(t, auth.ChallengeSent, hs.State())

	_, ignored := hs.Handle([]byte{0x11, 0x02, 0x01})
	assert.True(t, ignored, "MUST ignore frames without the 0x10 marker")

	_, ignored = hs.Handle([]byte{0x10, 0x01, 0x01})
	assert.False(t, ignored)
	assert.Equal(t, auth.ChallengeSent, hs.State(), "MUST treat the auth OK signal as informational")

	reply, _ := hs.Handle(append([]byte{0x10, 0x02, 0x01}, mustHex(challengeHex)...))
	assert.Equal(t, append([]byte{0x03, 0x00}, mustHex(responseHex)...), reply)
	assert.Equal(t, auth.AwaitingResponse, hs.State())

	hs.Handle([]byte{0x10, 0x03, 0x01})
	assert.Equal(t, auth.Authenticated, hs.State())
	assert.NoError(t, hs.Err())

	_, ignored = hs.Handle([]byte{0x10, 0x03, 0x08})
	assert.True(t, ignored, "MUST ignore frames after resolution")
	assert.Equal(t, auth.Authenticated, hs.State())
}

func TestHandshakeFailures(t *testing.T) {
	key, _ := auth.ParseKey(testKey)

	hs := auth.NewHandshake(key)
	hs.Start()
	hs.Handle([]byte{0x10, 0x03, 0x08})
	assert.Equal(t, auth.Failed, hs.State())
	assert.ErrorIs(t, hs.Err(), auth.ErrIncorrectKey)

	hs = auth.NewHandshake(key)
	hs.Start()
	hs.Handle([]byte{0x10, 0x04, 0x02})
	var rerr *auth.ResponseError
	require.ErrorAs(t, hs.Err(), &rerr)
	assert.Equal(t, []byte{0x04, 0x02}, rerr.Code)
	assert.ErrorIs(t, hs.Err(), auth.ErrUnknownResponse)
}

type AuthTestSuite struct {
	suite.Suite
	band *testutils.FakePeripheral
	s    *session.Session
	key  auth.Key
}

func (s *AuthTestSuite) SetupTest() {
	s.band = testutils.NewFakePeripheral("C8:0F:10:11:12:13").
		WithService(uuids.ServiceBand2).
		WithCharacteristic(uuids.CharAuth, "write,notify", nil)
	s.s = session.New(s.band, device.Handle{ID: "1", Address: "C8:0F:10:11:12:13"}, session.Options{}, testutils.NewTestLogger(s.T()))

	var err error
	s.key, err = auth.ParseKey(testKey)
	s.Require().NoError(err)
}

func (s *AuthTestSuite) TearDownTest() {
	s.NoError(s.s.Disconnect())
}

func (s *AuthTestSuite) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

// answer scripts the band: challenge on request, then the given verdict
func (s *AuthTestSuite) answer(verdict []byte) {
	s.band.OnWrite(uuids.CharAuth, func(p *testutils.FakePeripheral, data []byte) {
		switch data[0] {
		case 0x02:
			p.Notify(uuids.CharAuth, []byte{0x10, 0x01, 0x01})
			p.Notify(uuids.CharAuth, append([]byte{0x10, 0x02, 0x01}, mustHex(challengeHex)...))
		case 0x03:
			p.Notify(uuids.CharAuth, verdict)
			p.Notify(uuids.CharAuth, []byte{0x10, 0x03, 0x08})
		}
	})
}

func (s *AuthTestSuite) TestAuthenticateSuccess() {
	// GOAL: Verify the handshake resolves only after the band accepts the response
	//
	// TEST SCENARIO: request → challenge R → encrypted response written → (0x03,0x01) → success

	s.answer([]byte{0x10, 0x03, 0x01})

	s.Require().NoError(auth.Authenticate(s.ctx(), s.s, s.key))

	writes := s.band.Writes(uuids.CharAuth)
	s.Require().Len(writes, 2)
	s.Equal([]byte{0x02, 0x00}, writes[0], "MUST request a challenge first")
	s.Equal(append([]byte{0x03, 0x00}, mustHex(responseHex)...), writes[1], "MUST answer with the encrypted challenge")
	s.False(s.band.Subscribed(uuids.CharAuth), "MUST release the notification subscription")
}

func (s *AuthTestSuite) TestAuthenticateIncorrectKey() {
	s.band.OnWrite(uuids.CharAuth, func(p *testutils.FakePeripheral, data []byte) {
		if data[0] == 0x02 {
			p.Notify(uuids.CharAuth, []byte{0x10, 0x03, 0x08})
			p.Notify(uuids.CharAuth, []byte{0x10, 0x03, 0x01})
		}
	})

	err := auth.Authenticate(s.ctx(), s.s, s.key)
	s.ErrorIs(err, auth.ErrIncorrectKey, "MUST reject with incorrect key")
	s.Len(s.band.Writes(uuids.CharAuth), 1, "MUST NOT answer after a terminal failure")
	s.False(s.band.Subscribed(uuids.CharAuth), "MUST release the subscription on failure")
}

func (s *AuthTestSuite) TestAuthenticateUnknownCode() {
	s.answer([]byte{0x10, 0x03, 0x04})

	err := auth.Authenticate(s.ctx(), s.s, s.key)
	s.ErrorIs(err, auth.ErrUnknownResponse)
	s.False(s.band.Subscribed(uuids.CharAuth))
}

func (s *AuthTestSuite) TestAuthenticateLinkLost() {
	s.band.OnWrite(uuids.CharAuth, func(p *testutils.FakePeripheral, data []byte) {
		go p.Drop()
	})

	err := auth.Authenticate(s.ctx(), s.s, s.key)
	s.ErrorIs(err, device.ErrNotConnected, "MUST fail instead of waiting forever")
}

func TestAuthTestSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
