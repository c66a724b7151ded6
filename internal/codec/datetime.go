package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

// dateTimeSize is year:u16, month, day, hour, minute, second
const dateTimeSize = 7

// decodeDateTime reads a 7-byte timestamp. Month is 1-based on the wire.
func decodeDateTime(b []byte, loc *time.Location) time.Time {
	year := int(binary.LittleEndian.Uint16(b[0:2]))
	return time.Date(year, time.Month(b[2]), int(b[3]), int(b[4]), int(b[5]), int(b[6]), 0, loc)
}

func putDateTime(b []byte, t time.Time) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(t.Year()))
	b[2] = byte(t.Month())
	b[3] = byte(t.Day())
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
}

// ClockTime is a wall-clock time of day used by schedules and alarms
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" in 24h notation
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) bytes() []byte {
	return []byte{byte(c.Hour), byte(c.Minute)}
}
