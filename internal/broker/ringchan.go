package broker

import "sync/atomic"

// ringChannel is a bounded channel that drops the oldest element instead of
// blocking the producer. Scan callbacks run on the transport's goroutine and
// must never stall behind a slow reader.
type ringChannel[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

func newRingChannel[T any](capacity int) *ringChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &ringChannel[T]{ch: make(chan T, capacity)}
}

func (rc *ringChannel[T]) C() <-chan T {
	return rc.ch
}

// send always succeeds; it reports whether an older element was discarded
func (rc *ringChannel[T]) send(v T) bool {
	for {
		select {
		case rc.ch <- v:
			return false
		default:
		}
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
			select {
			case rc.ch <- v:
			default:
				continue
			}
			return true
		default:
		}
	}
}

func (rc *ringChannel[T]) Dropped() int64 {
	return rc.dropped.Load()
}
