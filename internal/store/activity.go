package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/srg/bandctl/internal/activity"
)

const dayLayout = "2006-01-02"

func (s *Store) day(bandID int, day string) *dayActivity {
	for _, d := range s.doc.Activity {
		if d.BandID == bandID && d.Day == day {
			return d
		}
	}
	return nil
}

// PutActivity merges hourly aggregates into the band's days. An aggregate
// replaces any stored one with the same timestamp. The band's LatestActivity
// advances to the start of the newest hour written, so a fetch resuming from
// it reads that hour again in full.
func (s *Store) PutActivity(bandID int, hours []activity.HourlyAggregate) error {
	if len(hours) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bandIdx := -1
	for i, p := range s.doc.Bands {
		if p.ID == bandID {
			bandIdx = i
			break
		}
	}
	if bandIdx < 0 {
		return fmt.Errorf("put activity for band %d: %w", bandID, ErrNotFound)
	}

	latest := s.doc.Bands[bandIdx].LatestActivity
	for _, h := range hours {
		key := h.Time.Format(dayLayout)
		d := s.day(bandID, key)
		if d == nil {
			d = &dayActivity{BandID: bandID, Day: key}
			s.doc.Activity = append(s.doc.Activity, d)
		}

		replaced := false
		for i := range d.Hours {
			if d.Hours[i].Time.Equal(h.Time) {
				d.Hours[i] = h
				replaced = true
				break
			}
		}
		if !replaced {
			d.Hours = append(d.Hours, h)
		}
		sort.Slice(d.Hours, func(i, j int) bool { return d.Hours[i].Time.Before(d.Hours[j].Time) })

		if h.Time.After(latest) {
			latest = h.Time
		}
	}
	s.doc.Bands[bandIdx].LatestActivity = latest

	sort.SliceStable(s.doc.Activity, func(i, j int) bool {
		a, b := s.doc.Activity[i], s.doc.Activity[j]
		if a.BandID != b.BandID {
			return a.BandID < b.BandID
		}
		return a.Day < b.Day
	})
	return s.save()
}

// QueryActivity returns the band's hours in [from, to). With byDay set the
// hours are reduced to one record per day: steps are summed and heart rate
// averaged over the hours that have a reading.
func (s *Store) QueryActivity(bandID int, from, to time.Time, byDay bool) ([]activity.HourlyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hours []activity.HourlyAggregate
	for _, d := range s.doc.Activity {
		if d.BandID != bandID {
			continue
		}
		for _, h := range d.Hours {
			if !h.Time.Before(from) && h.Time.Before(to) {
				hours = append(hours, h)
			}
		}
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Time.Before(hours[j].Time) })

	if !byDay {
		return hours, nil
	}
	return perDay(hours), nil
}

func perDay(hours []activity.HourlyAggregate) []activity.HourlyAggregate {
	var days []activity.HourlyAggregate
	var hrSum float64
	var hrHours int

	closeDay := func() {
		if len(days) == 0 {
			return
		}
		if hrHours > 0 {
			days[len(days)-1].AverageHeartRate = hrSum / float64(hrHours)
		}
		hrSum, hrHours = 0, 0
	}

	for _, h := range hours {
		t := h.Time
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		if len(days) == 0 || !days[len(days)-1].Time.Equal(start) {
			closeDay()
			days = append(days, activity.HourlyAggregate{Time: start})
		}
		cur := &days[len(days)-1]
		cur.TotalSteps += h.TotalSteps
		cur.Samples += h.Samples
		if h.AverageHeartRate > 0 {
			hrSum += h.AverageHeartRate
			hrHours++
		}
	}
	closeDay()
	return days
}
