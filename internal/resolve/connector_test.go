package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openskies-io/alpacahub/internal/registry"
)

func TestAlpacaConnector(t *testing.T) {
	var gotConnected []bool
	c := NewAlpacaConnector(time.Second)
	c.setConnected = func(ctx context.Context, d *registry.UnifiedDevice, connected bool) error {
		gotConnected = append(gotConnected, connected)
		return nil
	}

	device := &registry.UnifiedDevice{ID: "d1", Type: "telescope", IPAddress: "192.168.1.50", Port: 11111}

	if err := c.Connect(context.Background(), device); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Disconnect(context.Background(), device); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	if len(gotConnected) != 2 || !gotConnected[0] || gotConnected[1] {
		t.Errorf("setConnected calls = %v, want [true false]", gotConnected)
	}
}

func TestAlpacaConnector_PropagatesError(t *testing.T) {
	wantErr := errors.New("device error")
	c := NewAlpacaConnector(time.Second)
	c.setConnected = func(ctx context.Context, d *registry.UnifiedDevice, connected bool) error {
		return wantErr
	}

	device := &registry.UnifiedDevice{ID: "d1"}
	if err := c.Connect(context.Background(), device); !errors.Is(err, wantErr) {
		t.Errorf("Connect() error = %v, want %v", err, wantErr)
	}
}
