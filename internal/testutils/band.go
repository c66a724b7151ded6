package testutils

import (
	"time"

	"github.com/srg/bandctl/internal/codec"
	"github.com/srg/bandctl/internal/uuids"
)

// NewFakeBand returns a peripheral exposing the full band profile. The clock
// characteristic reads back clock and every auth attempt succeeds.
func NewFakeBand(mac string, clock time.Time) *FakePeripheral {
	systemID, err := codec.EncodeSystemID(mac)
	if err != nil {
		panic(err)
	}

	p := NewFakePeripheral(mac).
		WithService(uuids.ServiceBand1).
		WithCharacteristic(uuids.CharBattery, "read,notify", codec.EncodeBattery(codec.Battery{
			Level: 81, LastOff: clock.Add(-48 * time.Hour), LastCharge: clock.Add(-24 * time.Hour), LastLevel: 20,
		})).
		WithCharacteristic(uuids.CharSteps, "read,notify", codec.EncodeSteps(codec.Steps{Steps: 4321, Meters: 2900, Calories: 120}, codec.StepsLayout{Steps: 16, Meters: 16, Calories: 16})).
		WithCharacteristic(uuids.CharCurrentTime, "read,write", codec.EncodeCurrentTime(clock)).
		WithCharacteristic(uuids.CharConfiguration, "write,notify", nil).
		WithCharacteristic(uuids.CharUserSettings, "write", nil).
		WithCharacteristic(uuids.CharChunkedTransfer, "write", nil).
		WithCharacteristic(uuids.CharFetch, "write,notify", nil).
		WithCharacteristic(uuids.CharActivityData, "notify", nil).
		WithService(uuids.ServiceBand2).
		WithCharacteristic(uuids.CharAuth, "write,notify", nil).
		WithService(uuids.ServiceDeviceInformation).
		WithCharacteristic(uuids.CharSystemID, "read", systemID).
		WithCharacteristic(uuids.CharSerialNumber, "read", []byte("12345\x00")).
		WithCharacteristic(uuids.CharHardwareRevision, "read", []byte("V0.44.4.1")).
		WithCharacteristic(uuids.CharSoftwareRevision, "read", []byte("1.0.9.66")).
		WithCharacteristic(uuids.CharPnPID, "read", []byte{0x01, 0x57, 0x01, 0x00, 0x7e, 0x11, 0x00})

	return p.WithName("Mi Band 3", -55).OnWrite(uuids.CharAuth, AcceptAnyKey)
}

// AcceptAnyKey answers the auth handshake with a zero challenge and then
// success, whatever response the central computed.
func AcceptAnyKey(p *FakePeripheral, data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case 0x02:
		p.Notify(uuids.CharAuth, append([]byte{0x10, 0x02, 0x01}, make([]byte, 16)...))
	case 0x03:
		p.Notify(uuids.CharAuth, []byte{0x10, 0x03, 0x01})
	}
}

// RejectKey answers every auth write with the incorrect-key code
func RejectKey(p *FakePeripheral, _ []byte) {
	p.Notify(uuids.CharAuth, []byte{0x10, 0x03, 0x08})
}
