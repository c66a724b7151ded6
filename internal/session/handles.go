package session

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/device"
)

// GetService returns the handle of the service, resolving and caching it on a miss.
func (s *Session) GetService(ctx context.Context, serviceID string) (device.Service, error) {
	if svc, ok := s.cache.Load().services.Get(cacheKey(serviceID)); ok {
		return svc, nil
	}
	return fetch(ctx, s, func(client device.Client, cache *handleCache) (device.Service, error) {
		return s.service(client, cache, serviceID)
	})
}

// GetCharacteristic returns the handle of a characteristic in the given service.
func (s *Session) GetCharacteristic(ctx context.Context, serviceID, charID string) (device.Characteristic, error) {
	if char, ok := s.cache.Load().characteristics.Get(cacheKey(serviceID, charID)); ok {
		return char, nil
	}
	return fetch(ctx, s, func(client device.Client, cache *handleCache) (device.Characteristic, error) {
		return s.characteristic(client, cache, serviceID, charID)
	})
}

// GetDescriptor returns the handle of a descriptor of the given characteristic.
func (s *Session) GetDescriptor(ctx context.Context, serviceID, charID, descID string) (device.Descriptor, error) {
	if desc, ok := s.cache.Load().descriptors.Get(cacheKey(serviceID, charID, descID)); ok {
		return desc, nil
	}
	return fetch(ctx, s, func(client device.Client, cache *handleCache) (device.Descriptor, error) {
		char, err := s.characteristic(client, cache, serviceID, charID)
		if err != nil {
			return nil, err
		}
		desc, err := client.DiscoverDescriptor(char, descID)
		if err != nil {
			return nil, err
		}
		cache.descriptors.Set(cacheKey(serviceID, charID, descID), desc)
		return desc, nil
	})
}

func (s *Session) service(client device.Client, cache *handleCache, serviceID string) (device.Service, error) {
	key := cacheKey(serviceID)
	if svc, ok := cache.services.Get(key); ok {
		return svc, nil
	}
	s.logger.WithField("service_uuid", serviceID).Debug("Resolving service")
	svc, err := client.DiscoverService(serviceID)
	if err != nil {
		return nil, err
	}
	cache.services.Set(key, svc)
	return svc, nil
}

func (s *Session) characteristic(client device.Client, cache *handleCache, serviceID, charID string) (device.Characteristic, error) {
	key := cacheKey(serviceID, charID)
	if char, ok := cache.characteristics.Get(key); ok {
		return char, nil
	}
	svc, err := s.service(client, cache, serviceID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"service_uuid": serviceID,
		"char_uuid":    charID,
	}).Debug("Resolving characteristic")
	char, err := client.DiscoverCharacteristic(svc, charID)
	if err != nil {
		return nil, err
	}
	cache.characteristics.Set(key, char)
	return char, nil
}

// fetch runs a resolution against the live connection. A failure reporting a
// lost connection is retried exactly once after a forced reconnect.
func fetch[T any](ctx context.Context, s *Session, resolve func(device.Client, *handleCache) (T, error)) (T, error) {
	var zero T

	client, cache, err := s.live(ctx)
	if err != nil {
		return zero, err
	}
	v, err := resolve(client, cache)
	if err == nil {
		return v, nil
	}
	if !errors.Is(device.NormalizeError(err), device.ErrNotConnected) {
		return zero, err
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.handle.Addr(),
		"error":   err,
	}).Warn("Connection dropped during handle resolution, reconnecting")

	if err := s.ConnectIfNeeded(ctx, true); err != nil {
		return zero, err
	}
	if client, cache, err = s.live(ctx); err != nil {
		return zero, err
	}
	return resolve(client, cache)
}

// Read resolves a characteristic and reads its value
func (s *Session) Read(ctx context.Context, serviceID, charID string) ([]byte, error) {
	char, err := s.GetCharacteristic(ctx, serviceID, charID)
	if err != nil {
		return nil, err
	}
	client, err := s.current()
	if err != nil {
		return nil, err
	}
	return client.ReadCharacteristic(char)
}

// ReadDescriptor resolves a descriptor and reads its value
func (s *Session) ReadDescriptor(ctx context.Context, serviceID, charID, descID string) ([]byte, error) {
	desc, err := s.GetDescriptor(ctx, serviceID, charID, descID)
	if err != nil {
		return nil, err
	}
	client, err := s.current()
	if err != nil {
		return nil, err
	}
	return client.ReadDescriptor(desc)
}

// Write resolves a characteristic and writes data to it
func (s *Session) Write(ctx context.Context, serviceID, charID string, data []byte, withResponse bool) error {
	char, err := s.GetCharacteristic(ctx, serviceID, charID)
	if err != nil {
		return err
	}
	client, err := s.current()
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"char_uuid": charID,
		"len":       len(data),
	}).Debug("Writing characteristic")
	return client.WriteCharacteristic(char, data, withResponse)
}
