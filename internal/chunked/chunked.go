// Package chunked implements the band's chunked transfer framing for payloads
// larger than one characteristic write.
package chunked

import (
	"context"
	"fmt"
)

// MaxChunk is the payload capacity of one frame
const MaxChunk = 17

const (
	flagMiddle = 0x40
	flagLast   = 0x80
)

// Writer is the characteristic write surface frames go to
type Writer interface {
	Write(ctx context.Context, serviceID, charID string, data []byte, withResponse bool) error
}

// Frames splits payload into frames of [0x00, flags|tag, seq] followed by at
// most MaxChunk payload bytes. The first frame carries the bare tag, middle
// frames 0x40, the last 0x80 and a single frame 0xC0. An empty payload
// yields one single frame without payload bytes.
func Frames(tag byte, payload []byte) [][]byte {
	count := (len(payload) + MaxChunk - 1) / MaxChunk
	if count == 0 {
		count = 1
	}

	frames := make([][]byte, 0, count)
	for n := 0; n < count; n++ {
		start := n * MaxChunk
		end := min(start+MaxChunk, len(payload))

		flags := tag
		switch last := n == count-1; {
		case last && n == 0:
			flags |= flagLast | flagMiddle
		case last:
			flags |= flagLast
		case n > 0:
			flags |= flagMiddle
		}

		frame := make([]byte, 0, 3+end-start)
		frame = append(frame, 0x00, flags, byte(n))
		frame = append(frame, payload[start:end]...)
		frames = append(frames, frame)
	}
	return frames
}

// Write sends payload as frames, strictly in order and without response,
// waiting for each write to complete before the next.
func Write(ctx context.Context, w Writer, serviceID, charID string, tag byte, payload []byte) error {
	frames := Frames(tag, payload)
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(ctx, serviceID, charID, frame, false); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(frames), err)
		}
	}
	return nil
}
