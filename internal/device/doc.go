// Package device defines the transport-neutral view of a GATT peripheral that
// the band protocol engine is written against.
//
// It provides:
//   - Central / Client interfaces for dialing and talking to a peripheral
//   - Service, Characteristic and Descriptor handles resolved per connection
//   - Advertisement watching and scanning interfaces
//   - The connection error taxonomy shared by all transports
//
// The go-ble backed implementation lives in the goble subpackage.
package device
