// Package resolve turns discovered Alpaca servers into registry device
// candidates.
//
// For each server the resolver fetches /management/v1/description and
// /management/v1/configureddevices, lowercases device types, applies a
// single configurable type filter, and builds one UnifiedDevice candidate
// per surviving device with a proxy-relative apiBaseUrl. Resolution fails
// atomically: a server that cannot answer both management calls contributes
// no candidates at all.
//
// IsDeviceAdded implements the deduplication rule used before registration:
// exact apiBaseUrl match, or a full match on the (type, deviceNumber,
// ipAddress, port) tuple.
package resolve
