package discovery

import "errors"

var (
	// ErrScanInProgress is returned when Scan is called while a previous
	// discovery window has not yet elapsed. Only one discovery cycle may be
	// in flight at a time.
	ErrScanInProgress = errors.New("discovery already in progress")

	// ErrClosed is returned when the discoverer has been closed.
	ErrClosed = errors.New("discoverer is closed")

	// ErrInvalidAddress is returned when a manual entry has an unparseable
	// IP address.
	ErrInvalidAddress = errors.New("invalid server address")

	// ErrInvalidPort is returned when a manual entry has a port outside
	// 1-65535.
	ErrInvalidPort = errors.New("invalid server port")
)
