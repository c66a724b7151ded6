// Package uuids is the compiled-in registry of the GATT identifiers the band
// exposes. Nothing in here is mutable: lookups go through functions over
// constant tables.
package uuids

import "strings"

// Services
const (
	ServiceBand1             = "fee0"
	ServiceBand2             = "fee1"
	ServiceAlert             = "1811"
	ServiceDeviceInformation = "180a"
)

// Vendor characteristics share the 3512-2118-0009af100700 base.
const (
	CharConfiguration   = "00000003-0000-3512-2118-0009af100700"
	CharFetch           = "00000004-0000-3512-2118-0009af100700"
	CharActivityData    = "00000005-0000-3512-2118-0009af100700"
	CharBattery         = "00000006-0000-3512-2118-0009af100700"
	CharSteps           = "00000007-0000-3512-2118-0009af100700"
	CharUserSettings    = "00000008-0000-3512-2118-0009af100700"
	CharAuth            = "00000009-0000-3512-2118-0009af100700"
	CharChunkedTransfer = "00000020-0000-3512-2118-0009af100700"
)

// SIG characteristics used by the band.
const (
	CharCurrentTime      = "2a2b"
	CharSystemID         = "2a23"
	CharSerialNumber     = "2a25"
	CharHardwareRevision = "2a27"
	CharSoftwareRevision = "2a28"
	CharPnPID            = "2a50"
	CharNewAlert         = "2a46"
)

// DescriptorClientConfig is the CCCD written when enabling notifications.
const DescriptorClientConfig = "2902"

const sigBaseSuffix = "00001000800000805f9b34fb"

var knownNames = map[string]string{
	ServiceBand1:             "Band Service 1",
	ServiceBand2:             "Band Service 2 (Auth)",
	ServiceAlert:             "Alert Notification Service",
	ServiceDeviceInformation: "Device Information",

	Normalize(CharConfiguration):   "Configuration",
	Normalize(CharFetch):           "Activity Fetch Control",
	Normalize(CharActivityData):    "Activity Data",
	Normalize(CharBattery):         "Battery Info",
	Normalize(CharSteps):           "Realtime Steps",
	Normalize(CharUserSettings):    "User Settings",
	Normalize(CharAuth):            "Authentication",
	Normalize(CharChunkedTransfer): "Chunked Transfer",

	CharCurrentTime:      "Current Time",
	CharSystemID:         "System ID",
	CharSerialNumber:     "Serial Number String",
	CharHardwareRevision: "Hardware Revision String",
	CharSoftwareRevision: "Software Revision String",
	CharPnPID:            "PnP ID",
	CharNewAlert:         "New Alert",

	DescriptorClientConfig: "Client Characteristic Configuration",
}

// Normalize converts a UUID to the internal lookup form: lowercase, no dashes,
// no 0x prefix, and SIG base UUIDs shortened to their 16-bit form.
func Normalize(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// Equal reports whether two UUIDs name the same attribute.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Lookup returns the human-readable name of a known UUID, or "" when unknown.
func Lookup(uuid string) string {
	return knownNames[Normalize(uuid)]
}
