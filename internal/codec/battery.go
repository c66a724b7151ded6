package codec

import "time"

const batterySize = 20

// Battery is the decoded battery info characteristic
type Battery struct {
	Level      int       `json:"level" yaml:"level"`
	Charging   bool      `json:"charging" yaml:"charging"`
	LastOff    time.Time `json:"last_off" yaml:"last_off"`
	LastCharge time.Time `json:"last_charge" yaml:"last_charge"`
	LastLevel  int       `json:"last_level" yaml:"last_level"`
}

// DecodeBattery decodes the 20-byte battery info value.
// Timestamps are interpreted in loc, the band's clock zone.
func DecodeBattery(b []byte, loc *time.Location) (Battery, error) {
	if err := need("battery", b, batterySize); err != nil {
		return Battery{}, err
	}
	return Battery{
		Level:      int(b[1]),
		Charging:   b[2] == 1,
		LastOff:    decodeDateTime(b[3:3+dateTimeSize], loc),
		LastCharge: decodeDateTime(b[11:11+dateTimeSize], loc),
		LastLevel:  int(b[19]),
	}, nil
}

// EncodeBattery produces the layout DecodeBattery reads
func EncodeBattery(bat Battery) []byte {
	b := make([]byte, batterySize)
	b[0] = 0x0f
	b[1] = byte(bat.Level)
	if bat.Charging {
		b[2] = 1
	}
	putDateTime(b[3:], bat.LastOff)
	putDateTime(b[11:], bat.LastCharge)
	b[19] = byte(bat.LastLevel)
	return b
}
