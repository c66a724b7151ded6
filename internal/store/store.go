// Package store persists band profiles and hourly activity in one YAML file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/activity"
	"github.com/srg/bandctl/internal/band"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound  = errors.New("band not found")
	ErrDuplicate = errors.New("band already exists")
)

// BandProfile is a paired band
type BandProfile struct {
	ID             int            `yaml:"id" json:"id"`
	Nickname       string         `yaml:"nickname" json:"nickname"`
	MAC            string         `yaml:"mac" json:"mac"`
	DeviceID       string         `yaml:"device_id" json:"device_id"`
	AuthKey        string         `yaml:"auth_key" json:"-"`
	DateAdded      time.Time      `yaml:"date_added" json:"date_added"`
	LatestActivity time.Time      `yaml:"latest_activity,omitempty" json:"latest_activity,omitempty"`
	Settings       *band.Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// dayActivity holds the hourly aggregates of one band and calendar day
type dayActivity struct {
	BandID int                        `yaml:"band_id"`
	Day    string                     `yaml:"day"`
	Hours  []activity.HourlyAggregate `yaml:"hours"`
}

type document struct {
	NextID   int            `yaml:"next_id"`
	Bands    []BandProfile  `yaml:"bands"`
	Activity []*dayActivity `yaml:"activity"`
}

// Store is safe for concurrent use within one process
type Store struct {
	path   string
	logger *logrus.Logger

	mu  sync.Mutex
	doc document
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{path: path, logger: logger, doc: document{NextID: 1}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WithField("path", path).Debug("Store file does not exist yet")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", path, err)
	}
	if s.doc.NextID < 1 {
		s.doc.NextID = 1
	}
	logger.WithFields(logrus.Fields{
		"path":  path,
		"bands": len(s.doc.Bands),
	}).Debug("Store loaded")
	return s, nil
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// save writes the document through a temp file in the same directory
func (s *Store) save() error {
	raw, err := yaml.Marshal(&s.doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bands-*.yaml")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func sameMAC(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// AddBand stores a new profile and returns it with its assigned id
func (s *Store) AddBand(p BandProfile) (BandProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doc.Bands {
		if sameMAC(existing.MAC, p.MAC) || (p.DeviceID != "" && existing.DeviceID == p.DeviceID) {
			return BandProfile{}, fmt.Errorf("%w: %q (id %d)", ErrDuplicate, existing.Nickname, existing.ID)
		}
	}

	p.ID = s.doc.NextID
	if p.DateAdded.IsZero() {
		p.DateAdded = time.Now().Truncate(time.Second)
	}
	s.doc.NextID++
	s.doc.Bands = append(s.doc.Bands, p)

	if err := s.save(); err != nil {
		return BandProfile{}, err
	}
	s.logger.WithFields(logrus.Fields{"id": p.ID, "mac": p.MAC}).Info("Band added")
	return p, nil
}

func (s *Store) find(match func(BandProfile) bool) (BandProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.doc.Bands {
		if match(p) {
			return p, nil
		}
	}
	return BandProfile{}, ErrNotFound
}

func (s *Store) GetBand(id int) (BandProfile, error) {
	return s.find(func(p BandProfile) bool { return p.ID == id })
}

func (s *Store) BandByMAC(mac string) (BandProfile, error) {
	return s.find(func(p BandProfile) bool { return sameMAC(p.MAC, mac) })
}

func (s *Store) BandByDeviceID(deviceID string) (BandProfile, error) {
	return s.find(func(p BandProfile) bool { return p.DeviceID == deviceID })
}

// ListBands returns all profiles in id order
func (s *Store) ListBands() []BandProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BandProfile(nil), s.doc.Bands...)
}

// UpdateBand replaces the profile with the same id
func (s *Store) UpdateBand(p BandProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doc.Bands {
		if s.doc.Bands[i].ID == p.ID {
			s.doc.Bands[i] = p
			return s.save()
		}
	}
	return ErrNotFound
}

// RemoveBand deletes the profile together with its activity
func (s *Store) RemoveBand(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.doc.Bands {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	s.doc.Bands = append(s.doc.Bands[:idx], s.doc.Bands[idx+1:]...)

	kept := s.doc.Activity[:0]
	for _, d := range s.doc.Activity {
		if d.BandID != id {
			kept = append(kept, d)
		}
	}
	s.doc.Activity = kept

	s.logger.WithField("id", id).Info("Band removed")
	return s.save()
}
