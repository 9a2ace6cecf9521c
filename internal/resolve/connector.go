package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/alpaca"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/registry"
)

// AlpacaConnector performs registry connection transitions against the real
// device API: PUT Connected=true/false on the device's Alpaca server.
type AlpacaConnector struct {
	// Timeout applies to each connection call
	Timeout time.Duration

	// setConnected is stubbed in tests
	setConnected func(ctx context.Context, d *registry.UnifiedDevice, connected bool) error
}

// NewAlpacaConnector creates a connector with the given per-call timeout.
func NewAlpacaConnector(timeout time.Duration) *AlpacaConnector {
	if timeout <= 0 {
		timeout = alpaca.DefaultTimeout
	}
	c := &AlpacaConnector{Timeout: timeout}
	c.setConnected = c.callDevice
	return c
}

func (c *AlpacaConnector) callDevice(ctx context.Context, d *registry.UnifiedDevice, connected bool) error {
	client := alpaca.NewClientWithTimeout(d.IPAddress, d.Port, c.Timeout)
	return client.SetConnected(ctx, d.Type, d.DeviceNumber, connected)
}

// Connect asks the device's server to connect the device hardware.
func (c *AlpacaConnector) Connect(ctx context.Context, d *registry.UnifiedDevice) error {
	logging.Debug("Connecting device",
		zap.String("device_id", d.ID),
	)
	return c.setConnected(ctx, d, true)
}

// Disconnect asks the device's server to disconnect the device hardware.
func (c *AlpacaConnector) Disconnect(ctx context.Context, d *registry.UnifiedDevice) error {
	logging.Debug("Disconnecting device",
		zap.String("device_id", d.ID),
	)
	return c.setConnected(ctx, d, false)
}
