package goble

import (
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// gattClient is the part of ble.Client this package uses
type gattClient interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ReadDescriptor(d *ble.Descriptor) ([]byte, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// BLEClient implements device.Client on top of a go-ble connection.
// Discovery always asks the peer for the full list and filters locally, since
// some stacks only compute attribute end handles for unfiltered discovery.
type BLEClient struct {
	client  gattClient
	address string
	logger  *logrus.Logger
}

func newClient(client gattClient, address string, logger *logrus.Logger) *BLEClient {
	return &BLEClient{client: client, address: address, logger: logger}
}

func (c *BLEClient) Address() string {
	return c.address
}

func (c *BLEClient) DiscoverService(uuid string) (device.Service, error) {
	services, err := c.client.DiscoverServices(nil)
	if err != nil {
		return nil, NormalizeError(err)
	}
	for _, s := range services {
		if uuids.Equal(s.UUID.String(), uuid) {
			return newService(s), nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

func (c *BLEClient) DiscoverCharacteristic(svc device.Service, uuid string) (device.Characteristic, error) {
	bs, err := asService(svc)
	if err != nil {
		return nil, err
	}

	chars, err := c.client.DiscoverCharacteristics(nil, bs.svc)
	if err != nil {
		return nil, NormalizeError(err)
	}
	for _, ch := range chars {
		if !uuids.Equal(ch.UUID.String(), uuid) {
			continue
		}
		// The CCCD is only known after descriptor discovery
		if ch.Property&(ble.CharNotify|ble.CharIndicate) != 0 && ch.CCCD == nil {
			if _, err := c.client.DiscoverDescriptors(nil, ch); err != nil {
				c.logger.WithFields(logrus.Fields{
					"char_uuid": uuid,
					"error":     err,
				}).Warn("Failed to discover descriptors")
			}
		}
		return newCharacteristic(ch), nil
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{svc.UUID(), uuid}}
}

func (c *BLEClient) DiscoverDescriptor(char device.Characteristic, uuid string) (device.Descriptor, error) {
	bc, err := asCharacteristic(char)
	if err != nil {
		return nil, err
	}

	descs := bc.char.Descriptors
	if len(descs) == 0 {
		if descs, err = c.client.DiscoverDescriptors(nil, bc.char); err != nil {
			return nil, NormalizeError(err)
		}
	}
	for _, d := range descs {
		if uuids.Equal(d.UUID.String(), uuid) {
			return newDescriptor(d), nil
		}
	}
	return nil, &device.NotFoundError{Resource: "descriptor", UUIDs: []string{char.UUID(), uuid}}
}

func (c *BLEClient) ReadCharacteristic(char device.Characteristic) ([]byte, error) {
	bc, err := asCharacteristic(char)
	if err != nil {
		return nil, err
	}
	data, err := c.client.ReadCharacteristic(bc.char)
	return data, NormalizeError(err)
}

func (c *BLEClient) WriteCharacteristic(char device.Characteristic, data []byte, withResponse bool) error {
	bc, err := asCharacteristic(char)
	if err != nil {
		return err
	}
	return NormalizeError(c.client.WriteCharacteristic(bc.char, data, !withResponse))
}

func (c *BLEClient) ReadDescriptor(desc device.Descriptor) ([]byte, error) {
	bd, err := asDescriptor(desc)
	if err != nil {
		return nil, err
	}
	data, err := c.client.ReadDescriptor(bd.desc)
	return data, NormalizeError(err)
}

func (c *BLEClient) Subscribe(char device.Characteristic, handler device.NotificationHandler) error {
	bc, err := asCharacteristic(char)
	if err != nil {
		return err
	}
	if !bc.CanNotify() {
		return device.ErrUnsupported
	}

	c.logger.WithField("char_uuid", bc.uuid).Debug("Subscribing to characteristic")
	return NormalizeError(c.client.Subscribe(bc.char, bc.indicateOnly(), func(data []byte) {
		handler(data)
	}))
}

func (c *BLEClient) Unsubscribe(char device.Characteristic) error {
	bc, err := asCharacteristic(char)
	if err != nil {
		return err
	}
	return NormalizeError(c.client.Unsubscribe(bc.char, bc.indicateOnly()))
}

// Disconnect tears down the link; Disconnected() closes once it is gone.
func (c *BLEClient) Disconnect() error {
	c.logger.WithField("address", c.address).Debug("Cancelling BLE connection")
	return NormalizeError(c.client.CancelConnection())
}

func (c *BLEClient) Disconnected() <-chan struct{} {
	return c.client.Disconnected()
}
