package activity

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Sample is one minute of activity as recorded by the band
type Sample struct {
	Time      time.Time `json:"timestamp" yaml:"timestamp"`
	Category  int       `json:"category" yaml:"category"`
	Intensity int       `json:"intensity" yaml:"intensity"`
	Steps     int       `json:"steps" yaml:"steps"`
	HeartRate int       `json:"heart_rate" yaml:"heart_rate"`
}

// HourlyAggregate summarizes the samples of one clock hour
type HourlyAggregate struct {
	Time             time.Time `json:"timestamp" yaml:"timestamp"` // start of the hour
	TotalSteps       int       `json:"total_steps" yaml:"total_steps"`
	AverageHeartRate float64   `json:"average_heart_rate" yaml:"average_heart_rate"`
	Samples          int       `json:"samples" yaml:"samples"`
}

// Combine merges two partial aggregates of the same hour, as produced when a
// batch boundary splits an hour.
func Combine(a, b HourlyAggregate) HourlyAggregate {
	n := a.Samples + b.Samples
	if n == 0 {
		return HourlyAggregate{Time: a.Time, TotalSteps: a.TotalSteps + b.TotalSteps}
	}
	return HourlyAggregate{
		Time:             a.Time,
		TotalSteps:       a.TotalSteps + b.TotalSteps,
		AverageHeartRate: (a.AverageHeartRate*float64(a.Samples) + b.AverageHeartRate*float64(b.Samples)) / float64(n),
		Samples:          n,
	}
}

const sampleSize = 4

func decodeSample(b []byte, at time.Time) Sample {
	return Sample{
		Time:      at,
		Category:  int(b[0]),
		Intensity: int(b[1]),
		Steps:     int(b[2]),
		HeartRate: int(b[3]),
	}
}

// Aggregate groups samples by their calendar hour in loc and reduces every
// group to total steps and mean heart rate. Aggregates come out in the order
// their hour was first seen.
func Aggregate(samples []Sample, loc *time.Location) []HourlyAggregate {
	type bucket struct {
		start     time.Time
		steps     int
		heartRate int
		count     int
	}

	buckets := orderedmap.New[int64, *bucket]()
	for _, s := range samples {
		t := s.Time.In(loc)
		hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)

		b, ok := buckets.Get(hour.Unix())
		if !ok {
			b = &bucket{start: hour}
			buckets.Set(hour.Unix(), b)
		}
		b.steps += s.Steps
		b.heartRate += s.HeartRate
		b.count++
	}

	out := make([]HourlyAggregate, 0, buckets.Len())
	for pair := buckets.Oldest(); pair != nil; pair = pair.Next() {
		b := pair.Value
		out = append(out, HourlyAggregate{
			Time:             b.start,
			TotalSteps:       b.steps,
			AverageHeartRate: float64(b.heartRate) / float64(b.count),
			Samples:          b.count,
		})
	}
	return out
}
