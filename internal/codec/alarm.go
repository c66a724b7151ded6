package codec

import (
	"fmt"
	"strings"
)

// MaxAlarms is the number of alarm slots on the band
const MaxAlarms = 16

const alarmEnabled = 0x80

// Repetition is the weekday bitmask of an alarm, Monday in bit 0
type Repetition uint8

const (
	Monday Repetition = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday

	Once     Repetition = 0
	Everyday Repetition = 0x7f
)

var weekdayNames = []struct {
	day  Repetition
	name string
}{
	{Sunday, "Sun"}, {Monday, "Mon"}, {Tuesday, "Tue"}, {Wednesday, "Wed"},
	{Thursday, "Thu"}, {Friday, "Fri"}, {Saturday, "Sat"},
}

// String renders "Everyday", "Once" or the selected days from Sunday on,
// e.g. "Sun, Mon, Sat"
func (r Repetition) String() string {
	switch r & Everyday {
	case Everyday:
		return "Everyday"
	case Once:
		return "Once"
	}
	var days []string
	for _, d := range weekdayNames {
		if r&d.day != 0 {
			days = append(days, d.name)
		}
	}
	return strings.Join(days, ", ")
}

// ParseRepetition accepts "everyday", "once" or a comma separated list of
// three-letter day names.
func ParseRepetition(s string) (Repetition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "everyday", "daily":
		return Everyday, nil
	case "once", "":
		return Once, nil
	}

	var r Repetition
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, d := range weekdayNames {
			if strings.EqualFold(part, d.name) {
				r |= d.day
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown weekday %q", part)
		}
	}
	return r, nil
}

func (r Repetition) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Repetition) UnmarshalText(text []byte) error {
	parsed, err := ParseRepetition(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Alarm is one alarm slot
type Alarm struct {
	ID      int        `json:"id" yaml:"id"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
	Time    ClockTime  `json:"time" yaml:"time"`
	Days    Repetition `json:"days" yaml:"days"`
}

// AlarmCommand builds the configuration command for one alarm slot
func AlarmCommand(a Alarm) ([]byte, error) {
	if a.ID < 0 || a.ID >= MaxAlarms {
		return nil, fmt.Errorf("alarm id %d out of range 0-%d", a.ID, MaxAlarms-1)
	}
	if !a.Time.Valid() {
		return nil, fmt.Errorf("alarm %d: invalid time %s", a.ID, a.Time)
	}
	id := byte(a.ID)
	if a.Enabled {
		id |= alarmEnabled
	}
	return []byte{cmdAlarm, id, byte(a.Time.Hour), byte(a.Time.Minute), byte(a.Days & Everyday)}, nil
}
