package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/srg/bandctl/internal/device"
	"github.com/srg/bandctl/internal/uuids"
)

// WriteHook runs after a write to a characteristic has been recorded.
// It typically answers by calling Notify on the peripheral.
type WriteHook func(p *FakePeripheral, data []byte)

// CharacteristicConfig describes a fake characteristic
type CharacteristicConfig struct {
	UUID        string            `json:"uuid"`
	Properties  string            `json:"properties,omitempty"` // e.g. "read,write,notify"
	Value       []byte            `json:"value,omitempty"`
	Descriptors map[string][]byte `json:"descriptors,omitempty"`
}

// ServiceConfig describes a fake service
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// FakePeripheral is a scripted in-memory peripheral. It implements
// device.Central and device.AdvertisementWatcher for the address it was
// built with; every Dial hands out a fresh connection.
type FakePeripheral struct {
	mu sync.Mutex

	address  string
	name     string
	rssi     int
	services []ServiceConfig
	values   map[string][]byte // by char uuid

	dialErrs     []error
	discoverErrs map[string][]error
	advertising  bool
	hooks        map[string]WriteHook

	conn        *fakeClient
	generation  int
	dials       int
	discoveries map[string]int
	writes      map[string][][]byte
	handlers    map[string]device.NotificationHandler
}

// NewFakePeripheral creates an empty peripheral reachable at address
func NewFakePeripheral(address string) *FakePeripheral {
	return &FakePeripheral{
		address:      address,
		values:       map[string][]byte{},
		discoverErrs: map[string][]error{},
		hooks:        map[string]WriteHook{},
		discoveries:  map[string]int{},
		writes:       map[string][][]byte{},
		handlers:     map[string]device.NotificationHandler{},
	}
}

// WithService adds a service to the profile
func (p *FakePeripheral) WithService(uuid string) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services = append(p.services, ServiceConfig{UUID: uuid})
	return p
}

// WithCharacteristic adds a characteristic to the last added service
func (p *FakePeripheral) WithCharacteristic(uuid, properties string, value []byte) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := &p.services[len(p.services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{UUID: uuid, Properties: properties})
	p.values[uuids.Normalize(uuid)] = value
	return p
}

// WithDescriptor adds a descriptor to the last added characteristic
func (p *FakePeripheral) WithDescriptor(uuid string, value []byte) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.services) == 0 || len(p.services[len(p.services)-1].Characteristics) == 0 {
		panic("WithDescriptor: no characteristic added yet, call WithCharacteristic first")
	}
	chars := p.services[len(p.services)-1].Characteristics
	last := &chars[len(chars)-1]
	if last.Descriptors == nil {
		last.Descriptors = map[string][]byte{}
	}
	last.Descriptors[uuids.Normalize(uuid)] = value
	return p
}

// FromJSON replaces the profile with a JSON list of services
func (p *FakePeripheral) FromJSON(jsonStrFmt string, args ...interface{}) *FakePeripheral {
	var services []ServiceConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &services); err != nil {
		panic(fmt.Sprintf("FakePeripheral.FromJSON: failed to unmarshal: %v", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services = services
	for _, s := range services {
		for _, c := range s.Characteristics {
			p.values[uuids.Normalize(c.UUID)] = c.Value
		}
	}
	return p
}

// FailDial queues errors returned by the next dials, one per dial
func (p *FakePeripheral) FailDial(errs ...error) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialErrs = append(p.dialErrs, errs...)
	return p
}

// FailDiscovery queues errors returned by the next discoveries of uuid
func (p *FakePeripheral) FailDiscovery(uuid string, errs ...error) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := uuids.Normalize(uuid)
	p.discoverErrs[key] = append(p.discoverErrs[key], errs...)
	return p
}

// Advertising controls whether WaitForAdvertisement succeeds immediately or blocks until its context ends
func (p *FakePeripheral) Advertising(on bool) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advertising = on
	return p
}

// OnWrite installs a hook for writes to the characteristic
func (p *FakePeripheral) OnWrite(charUUID string, hook WriteHook) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[uuids.Normalize(charUUID)] = hook
	return p
}

// SetValue replaces the value returned by reads of the characteristic
func (p *FakePeripheral) SetValue(charUUID string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[uuids.Normalize(charUUID)] = value
}

// Notify pushes a value to the subscriber of the characteristic.
// It reports whether anyone was subscribed.
func (p *FakePeripheral) Notify(charUUID string, data []byte) bool {
	p.mu.Lock()
	h := p.handlers[uuids.Normalize(charUUID)]
	p.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Drop simulates the peripheral going away on its own
func (p *FakePeripheral) Drop() {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

// Dials returns the number of dial attempts
func (p *FakePeripheral) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

// Discoveries returns how often uuid was discovered over all connections
func (p *FakePeripheral) Discoveries(uuid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveries[uuids.Normalize(uuid)]
}

// Writes returns every value written to the characteristic, in order
func (p *FakePeripheral) Writes(charUUID string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.writes[uuids.Normalize(charUUID)]...)
}

// Subscribed reports whether notifications are enabled on the characteristic
func (p *FakePeripheral) Subscribed(charUUID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handlers[uuids.Normalize(charUUID)]
	return ok
}

// Connected reports whether a connection is open
func (p *FakePeripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// Dial implements device.Central
func (p *FakePeripheral) Dial(ctx context.Context, address string) (device.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dials++

	if len(p.dialErrs) > 0 {
		err := p.dialErrs[0]
		p.dialErrs = p.dialErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if !strings.EqualFold(address, p.address) {
		return nil, fmt.Errorf("can't dial %s: %w", address, device.ErrNotReachable)
	}
	if p.conn != nil {
		return nil, device.ErrAlreadyConnected
	}

	p.generation++
	p.conn = &fakeClient{p: p, generation: p.generation, disconnected: make(chan struct{})}
	return p.conn, nil
}

// WaitForAdvertisement implements device.AdvertisementWatcher
func (p *FakePeripheral) WaitForAdvertisement(ctx context.Context, address string) error {
	p.mu.Lock()
	advertising := p.advertising && strings.EqualFold(address, p.address)
	p.mu.Unlock()
	if advertising {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// WithName sets the advertised local name and signal strength reported by Scan
func (p *FakePeripheral) WithName(name string, rssi int) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name, p.rssi = name, rssi
	return p
}

// Scan implements device.Scanner: it reports the peripheral once, advertising
// its service uuids, then blocks until ctx ends.
func (p *FakePeripheral) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	p.mu.Lock()
	adv := fakeAdvertisement{addr: p.address, name: p.name, rssi: p.rssi}
	for _, svc := range p.services {
		adv.services = append(adv.services, svc.UUID)
	}
	p.mu.Unlock()

	handler(adv)
	<-ctx.Done()
	return ctx.Err()
}

type fakeAdvertisement struct {
	addr     string
	name     string
	rssi     int
	services []string
}

func (a fakeAdvertisement) LocalName() string        { return a.name }
func (a fakeAdvertisement) ManufacturerData() []byte { return nil }
func (a fakeAdvertisement) Services() []string       { return a.services }
func (a fakeAdvertisement) Connectable() bool        { return true }
func (a fakeAdvertisement) RSSI() int                { return a.rssi }
func (a fakeAdvertisement) Addr() string             { return a.addr }

// CentralOnly hides the advertisement watcher of a fake peripheral
type CentralOnly struct {
	P *FakePeripheral
}

func (c CentralOnly) Dial(ctx context.Context, address string) (device.Client, error) {
	return c.P.Dial(ctx, address)
}

func (p *FakePeripheral) discover(key string) error {
	p.discoveries[key]++
	if errs := p.discoverErrs[key]; len(errs) > 0 {
		p.discoverErrs[key] = errs[1:]
		return errs[0]
	}
	return nil
}

// handle is a fake GATT attribute bound to the connection that resolved it
type handle struct {
	uuid       string
	service    string
	notify     bool
	generation int
	descValue  []byte
}

func (h *handle) UUID() string    { return h.uuid }
func (h *handle) CanNotify() bool { return h.notify }

var errStaleHandle = errors.New("handle from a previous connection")

type fakeClient struct {
	p            *FakePeripheral
	generation   int
	once         sync.Once
	disconnected chan struct{}
}

func (c *fakeClient) close() {
	c.once.Do(func() {
		c.p.mu.Lock()
		if c.p.conn == c {
			c.p.conn = nil
			c.p.handlers = map[string]device.NotificationHandler{}
		}
		c.p.mu.Unlock()
		close(c.disconnected)
	})
}

// check must be called with p.mu held
func (c *fakeClient) check(h *handle) error {
	if c.p.conn != c {
		return errors.New("device is not connected")
	}
	if h != nil && h.generation != c.generation {
		return errStaleHandle
	}
	return nil
}

func (c *fakeClient) asHandle(a device.Attribute) *handle {
	h, _ := a.(*handle)
	if h == nil {
		return &handle{generation: -1}
	}
	return h
}

func (c *fakeClient) Address() string { return c.p.address }

func (c *fakeClient) DiscoverService(uuid string) (device.Service, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.check(nil); err != nil {
		return nil, err
	}
	key := uuids.Normalize(uuid)
	if err := c.p.discover(key); err != nil {
		return nil, err
	}
	for _, s := range c.p.services {
		if uuids.Equal(s.UUID, key) {
			return &handle{uuid: key, generation: c.generation}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

func (c *fakeClient) DiscoverCharacteristic(svc device.Service, uuid string) (device.Characteristic, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	sh := c.asHandle(svc)
	if err := c.check(sh); err != nil {
		return nil, err
	}
	key := uuids.Normalize(uuid)
	if err := c.p.discover(key); err != nil {
		return nil, err
	}
	for _, s := range c.p.services {
		if !uuids.Equal(s.UUID, sh.uuid) {
			continue
		}
		for _, ch := range s.Characteristics {
			if uuids.Equal(ch.UUID, key) {
				return &handle{
					uuid:       key,
					service:    sh.uuid,
					notify:     strings.Contains(ch.Properties, "notify") || strings.Contains(ch.Properties, "indicate"),
					generation: c.generation,
				}, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{sh.uuid, uuid}}
}

func (c *fakeClient) DiscoverDescriptor(char device.Characteristic, uuid string) (device.Descriptor, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	ch := c.asHandle(char)
	if err := c.check(ch); err != nil {
		return nil, err
	}
	key := uuids.Normalize(uuid)
	if err := c.p.discover(key); err != nil {
		return nil, err
	}
	for _, s := range c.p.services {
		for _, cc := range s.Characteristics {
			if !uuids.Equal(cc.UUID, ch.uuid) {
				continue
			}
			if v, ok := cc.Descriptors[key]; ok {
				return &handle{uuid: key, generation: c.generation, descValue: v}, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "descriptor", UUIDs: []string{ch.uuid, uuid}}
}

func (c *fakeClient) ReadCharacteristic(char device.Characteristic) ([]byte, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	h := c.asHandle(char)
	if err := c.check(h); err != nil {
		return nil, err
	}
	return append([]byte(nil), c.p.values[h.uuid]...), nil
}

func (c *fakeClient) WriteCharacteristic(char device.Characteristic, data []byte, _ bool) error {
	c.p.mu.Lock()
	h := c.asHandle(char)
	if err := c.check(h); err != nil {
		c.p.mu.Unlock()
		return err
	}
	c.p.writes[h.uuid] = append(c.p.writes[h.uuid], append([]byte(nil), data...))
	hook := c.p.hooks[h.uuid]
	c.p.mu.Unlock()

	if hook != nil {
		hook(c.p, data)
	}
	return nil
}

func (c *fakeClient) ReadDescriptor(desc device.Descriptor) ([]byte, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	h := c.asHandle(desc)
	if err := c.check(h); err != nil {
		return nil, err
	}
	return append([]byte(nil), h.descValue...), nil
}

func (c *fakeClient) Subscribe(char device.Characteristic, handler device.NotificationHandler) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	h := c.asHandle(char)
	if err := c.check(h); err != nil {
		return err
	}
	if !h.notify {
		return device.ErrUnsupported
	}
	c.p.handlers[h.uuid] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(char device.Characteristic) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	h := c.asHandle(char)
	if err := c.check(h); err != nil {
		return err
	}
	delete(c.p.handlers, h.uuid)
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.p.mu.Lock()
	open := c.p.conn == c
	c.p.mu.Unlock()
	if !open {
		return errors.New("device is not connected")
	}
	c.close()
	return nil
}

func (c *fakeClient) Disconnected() <-chan struct{} {
	return c.disconnected
}
