package activity

// Sink receives fetch progress. Both methods are called synchronously from
// the fetch loop, in arrival order.
type Sink interface {
	Sample(Sample)
	Batch([]HourlyAggregate)
}

// SinkFuncs adapts optional callbacks to a Sink
type SinkFuncs struct {
	OnSample func(Sample)
	OnBatch  func([]HourlyAggregate)
}

func (f SinkFuncs) Sample(s Sample) {
	if f.OnSample != nil {
		f.OnSample(s)
	}
}

func (f SinkFuncs) Batch(b []HourlyAggregate) {
	if f.OnBatch != nil {
		f.OnBatch(b)
	}
}

// EventKind discriminates Event
type EventKind int

const (
	EventSample EventKind = iota
	EventBatch
	EventDone
)

// Event is one element of a fetch stream. The last event is EventDone,
// carrying the fetch result in Err, unless the stream context ends first.
type Event struct {
	Kind   EventKind
	Sample Sample
	Batch  []HourlyAggregate
	Err    error
}
