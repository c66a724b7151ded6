package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	stepsOffset    = 1
	metersOffset   = 5
	caloriesOffset = 9
)

// StepsLayout sets the bit width of each field of the realtime steps value.
// Firmware revisions disagree on them, so they are configurable.
type StepsLayout struct {
	Steps    int `default:"16" yaml:"steps"`
	Meters   int `default:"16" yaml:"meters"`
	Calories int `default:"16" yaml:"calories"`
}

// Validate reports widths other than 8, 16 or 32 bits
func (l StepsLayout) Validate() error {
	fields := []struct {
		name  string
		width int
	}{{"steps", l.Steps}, {"meters", l.Meters}, {"calories", l.Calories}}

	for _, f := range fields {
		switch f.width {
		case 8, 16, 32:
		default:
			return fmt.Errorf("steps layout: %s width must be 8, 16 or 32 bits, got %d", f.name, f.width)
		}
	}
	return nil
}

// Steps is the decoded realtime steps characteristic
type Steps struct {
	Steps    int `json:"steps" yaml:"steps"`
	Meters   int `json:"meters" yaml:"meters"`
	Calories int `json:"calories" yaml:"calories"`
}

// DecodeSteps decodes the realtime steps value using layout
func DecodeSteps(b []byte, layout StepsLayout) (Steps, error) {
	if err := layout.Validate(); err != nil {
		return Steps{}, err
	}
	if err := need("steps", b, caloriesOffset+layout.Calories/8); err != nil {
		return Steps{}, err
	}
	return Steps{
		Steps:    readUint(b[stepsOffset:], layout.Steps),
		Meters:   readUint(b[metersOffset:], layout.Meters),
		Calories: readUint(b[caloriesOffset:], layout.Calories),
	}, nil
}

// EncodeSteps produces the layout DecodeSteps reads
func EncodeSteps(s Steps, layout StepsLayout) []byte {
	b := make([]byte, caloriesOffset+4)
	b[0] = 0x0c
	writeUint(b[stepsOffset:], layout.Steps, s.Steps)
	writeUint(b[metersOffset:], layout.Meters, s.Meters)
	writeUint(b[caloriesOffset:], layout.Calories, s.Calories)
	return b
}

func readUint(b []byte, bits int) int {
	switch bits {
	case 8:
		return int(b[0])
	case 32:
		return int(binary.LittleEndian.Uint32(b))
	default:
		return int(binary.LittleEndian.Uint16(b))
	}
}

func writeUint(b []byte, bits, v int) {
	switch bits {
	case 8:
		b[0] = byte(v)
	case 32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint16(b, uint16(v))
	}
}
