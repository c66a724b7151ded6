package auth

import (
	"errors"
	"fmt"
)

const frameResponse = 0x10

var (
	// ErrIncorrectKey means the band rejected the key
	ErrIncorrectKey = errors.New("incorrect key")

	// ErrUnknownResponse is matched by every ResponseError
	ErrUnknownResponse = errors.New("unknown response code")
)

// ResponseError carries an unexpected response code from the band
type ResponseError struct {
	Code []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s % x", ErrUnknownResponse, e.Code)
}

func (e *ResponseError) Unwrap() error {
	return ErrUnknownResponse
}

// State of a Handshake
type State int

const (
	Idle State = iota
	ChallengeSent
	AwaitingResponse
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChallengeSent:
		return "challenge_sent"
	case AwaitingResponse:
		return "awaiting_response"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handshake is the challenge-response state machine of one authentication.
// It does no I/O: Start and Handle return the bytes to write.
type Handshake struct {
	key   Key
	state State
	err   error
}

func NewHandshake(key Key) *Handshake {
	return &Handshake{key: key}
}

func (h *Handshake) State() State { return h.state }

// Err is the failure reason once the state is Failed
func (h *Handshake) Err() error { return h.err }

// Done reports whether a terminal state was reached
func (h *Handshake) Done() bool {
	return h.state == Authenticated || h.state == Failed
}

// Start returns the request-challenge command
func (h *Handshake) Start() []byte {
	h.state = ChallengeSent
	return []byte{0x02, 0x00}
}

// Handle consumes one notification and returns the reply to write, if any.
// Frames not starting with 0x10 and everything after a terminal state are ignored;
// ignored reports which.
func (h *Handshake) Handle(frame []byte) (reply []byte, ignored bool) {
	if h.Done() || len(frame) == 0 || frame[0] != frameResponse {
		return nil, true
	}
	if len(frame) < 3 {
		h.fail(&ResponseError{Code: frame[1:]})
		return nil, false
	}

	switch [2]byte{frame[1], frame[2]} {
	case [2]byte{0x01, 0x01}:
		// informational, not terminal
	case [2]byte{0x02, 0x01}:
		ct, err := Response(h.key, frame[3:])
		if err != nil {
			h.fail(err)
			return nil, false
		}
		h.state = AwaitingResponse
		return append([]byte{0x03, 0x00}, ct...), false
	case [2]byte{0x03, 0x01}:
		h.state = Authenticated
	case [2]byte{0x03, 0x08}:
		h.fail(ErrIncorrectKey)
	default:
		h.fail(&ResponseError{Code: append([]byte(nil), frame[1:3]...)})
	}
	return nil, false
}

func (h *Handshake) fail(err error) {
	h.state = Failed
	h.err = err
}
