package discovery

import (
	"context"

	"github.com/darkermage/esplink/internal/device"
)

// Prober verifies that an address is the device
type Prober interface {
	// Probe returns true iff addr answers with the identification marker.
	// Unreachable candidates are a plain false, never an error.
	Probe(ctx context.Context, addr device.Address) bool
}

// Strategy is one way of locating the device
type Strategy interface {
	// Name is used in logs and metrics
	Name() string

	// Locate returns the device address if this strategy found it
	Locate(ctx context.Context) (device.Address, bool)
}

// ClientLister lists hosts known to a network controller
type ClientLister interface {
	// ListClients returns hosts whose hostname matches filterPattern (e.g. "esp32*")
	ListClients(ctx context.Context, filterPattern string) ([]Candidate, error)
}

// AddressStore persists the last verified address
type AddressStore interface {
	Load() (device.Address, bool)
	Save(addr device.Address)
}
