package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// DecodeMAC derives the band's MAC address from its 8-byte system id. The id
// carries the address little-endian around a constant 0xFFFE at offsets 3-4.
func DecodeMAC(systemID []byte) (string, error) {
	if err := need("system id", systemID, 8); err != nil {
		return "", err
	}
	addr := []byte{systemID[7], systemID[6], systemID[5], systemID[2], systemID[1], systemID[0]}

	parts := make([]string, len(addr))
	for i, b := range addr {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}

// EncodeSystemID is the inverse of DecodeMAC
func EncodeSystemID(mac string) ([]byte, error) {
	var a [6]byte
	if _, err := fmt.Sscanf(strings.ToUpper(mac), "%02X:%02X:%02X:%02X:%02X:%02X", &a[0], &a[1], &a[2], &a[3], &a[4], &a[5]); err != nil {
		return nil, fmt.Errorf("invalid MAC address %q", mac)
	}
	return []byte{a[5], a[4], a[3], 0xFE, 0xFF, a[2], a[1], a[0]}, nil
}

// PnPID is the decoded PnP id characteristic
type PnPID struct {
	VendorIDSource int `json:"vendor_id_source" yaml:"vendor_id_source"`
	VendorID       int `json:"vendor_id" yaml:"vendor_id"`
	ProductID      int `json:"product_id" yaml:"product_id"`
	ProductVersion int `json:"product_version" yaml:"product_version"`
}

func DecodePnPID(b []byte) (PnPID, error) {
	if err := need("pnp id", b, 7); err != nil {
		return PnPID{}, err
	}
	return PnPID{
		VendorIDSource: int(b[0]),
		VendorID:       int(binary.LittleEndian.Uint16(b[1:3])),
		ProductID:      int(binary.LittleEndian.Uint16(b[3:5])),
		ProductVersion: int(binary.LittleEndian.Uint16(b[5:7])),
	}, nil
}

// DecodeString decodes a UTF-8 string characteristic, dropping NUL padding
func DecodeString(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

const currentTimeSize = 11

// DecodeCurrentTime reads the date and time part of the current time value
func DecodeCurrentTime(b []byte, loc *time.Location) (time.Time, error) {
	if err := need("current time", b, dateTimeSize); err != nil {
		return time.Time{}, err
	}
	return decodeDateTime(b, loc), nil
}

// TimezoneBytes returns the two trailing timezone bytes of a current time
// value. Activity fetch requests echo them back to the band.
func TimezoneBytes(currentTime []byte) ([]byte, error) {
	if err := need("current time", currentTime, currentTimeSize); err != nil {
		return nil, err
	}
	return append([]byte(nil), currentTime[9:11]...), nil
}

// EncodeCurrentTime builds the 11-byte current time value: date time,
// weekday (1=Monday..7=Sunday), fractions, adjust reason and the UTC offset
// in quarter hours.
func EncodeCurrentTime(t time.Time) []byte {
	b := make([]byte, currentTimeSize)
	putDateTime(b, t)

	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	b[7] = byte(weekday)

	_, offset := t.Zone()
	b[10] = byte(int8(offset / (15 * 60)))
	return b
}
