package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a GATT attribute is not found on the peer
type NotFoundError struct {
	Resource string   // "service", "characteristic", "descriptor"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	parentResource := "service"
	if e.Resource == "descriptor" {
		parentResource = "characteristic"
	}
	return fmt.Sprintf("%s %q not found in %s %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], parentResource, e.UUIDs[len(e.UUIDs)-2])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	NotReachable     ConnectionState = "not_reachable"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any transport-level connection problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrNotReachable     = &ConnectionError{State: NotReachable}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrUnsupported = errors.New("unsupported")
)

// NormalizeError maps known transport error strings to structured ConnectionError types.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "not connected"),
		containsIgnoreCase(msg, "disconnected"),
		containsIgnoreCase(msg, "connection closed"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "not reachable"),
		containsIgnoreCase(msg, "unreachable"),
		containsIgnoreCase(msg, "out of range"),
		containsIgnoreCase(msg, "no longer in range"),
		containsIgnoreCase(msg, "can't dial"):
		return fmt.Errorf("%w: %v", ErrNotReachable, err)
	case containsIgnoreCase(msg, "already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Handle is the opaque identity of a paired peripheral as handed out by the
// device broker. The core never creates handles, it only dials them.
type Handle struct {
	ID      string `json:"id" yaml:"id"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Addr returns the address used to dial the peripheral.
func (h Handle) Addr() string {
	if h.Address != "" {
		return h.Address
	}
	return h.ID
}

func (h Handle) String() string {
	if h.Name != "" {
		return fmt.Sprintf("%s (%s)", h.Name, h.Addr())
	}
	return h.Addr()
}

// Advertisement is a received advertising packet
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	Connectable() bool
	RSSI() int
	Addr() string
}

// Scanner represents a central capable of scanning for advertisements
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Central opens GATT client connections to peripherals
type Central interface {
	Dial(ctx context.Context, address string) (Client, error)
}

// AdvertisementWatcher is implemented by centrals that can block until a
// given peripheral advertises again.
type AdvertisementWatcher interface {
	WaitForAdvertisement(ctx context.Context, address string) error
}

// Attribute is any resolved remote GATT attribute handle
type Attribute interface {
	UUID() string
}

// Service represents a resolved remote GATT service
type Service interface {
	Attribute
}

// Characteristic represents a resolved remote GATT characteristic
type Characteristic interface {
	Attribute
	CanNotify() bool
}

// Descriptor represents a resolved remote GATT descriptor
type Descriptor interface {
	Attribute
}

// NotificationHandler receives characteristic value notifications. The data
// slice is owned by the transport and must be copied if retained.
type NotificationHandler func(data []byte)

// Client is a live GATT client connection. Handles returned by one Client
// must not be used with another.
type Client interface {
	Address() string

	DiscoverService(uuid string) (Service, error)
	DiscoverCharacteristic(svc Service, uuid string) (Characteristic, error)
	DiscoverDescriptor(char Characteristic, uuid string) (Descriptor, error)

	ReadCharacteristic(char Characteristic) ([]byte, error)
	WriteCharacteristic(char Characteristic, data []byte, withResponse bool) error
	ReadDescriptor(desc Descriptor) ([]byte, error)

	Subscribe(char Characteristic, handler NotificationHandler) error
	Unsubscribe(char Characteristic) error

	Disconnect() error
	Disconnected() <-chan struct{}
}
