package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// BLEService wraps a discovered *ble.Service
type BLEService struct {
	uuid string
	svc  *ble.Service
}

func (s *BLEService) UUID() string {
	return s.uuid
}

// BLECharacteristic wraps a discovered *ble.Characteristic
type BLECharacteristic struct {
	uuid string
	char *ble.Characteristic
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

// CanNotify reports whether the characteristic supports notify or indicate
func (c *BLECharacteristic) CanNotify() bool {
	return c.char.Property&(ble.CharNotify|ble.CharIndicate) != 0
}

// indicateOnly reports whether the peer only supports indications
func (c *BLECharacteristic) indicateOnly() bool {
	return c.char.Property&ble.CharNotify == 0 && c.char.Property&ble.CharIndicate != 0
}

// BLEDescriptor wraps a discovered *ble.Descriptor
type BLEDescriptor struct {
	uuid string
	desc *ble.Descriptor
}

func (d *BLEDescriptor) UUID() string {
	return d.uuid
}

func newService(s *ble.Service) *BLEService {
	return &BLEService{uuid: uuids.Normalize(s.UUID.String()), svc: s}
}

func newCharacteristic(c *ble.Characteristic) *BLECharacteristic {
	return &BLECharacteristic{uuid: uuids.Normalize(c.UUID.String()), char: c}
}

func newDescriptor(d *ble.Descriptor) *BLEDescriptor {
	return &BLEDescriptor{uuid: uuids.Normalize(d.UUID.String()), desc: d}
}

// Handles passed back into a Client must be the ones it produced.
func asService(s device.Service) (*BLEService, error) {
	bs, ok := s.(*BLEService)
	if !ok || bs == nil || bs.svc == nil {
		return nil, fmt.Errorf("service handle %T does not belong to this transport", s)
	}
	return bs, nil
}

func asCharacteristic(c device.Characteristic) (*BLECharacteristic, error) {
	bc, ok := c.(*BLECharacteristic)
	if !ok || bc == nil || bc.char == nil {
		return nil, fmt.Errorf("characteristic handle %T does not belong to this transport", c)
	}
	return bc, nil
}

func asDescriptor(d device.Descriptor) (*BLEDescriptor, error) {
	bd, ok := d.(*BLEDescriptor)
	if !ok || bd == nil || bd.desc == nil {
		return nil, fmt.Errorf("descriptor handle %T does not belong to this transport", d)
	}
	return bd, nil
}
