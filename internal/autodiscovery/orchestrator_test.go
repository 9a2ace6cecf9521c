package autodiscovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/openskies-io/alpacahub/internal/alpaca"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/registry"
	"github.com/openskies-io/alpacahub/internal/resolve"
)

// fakeAlpacaServer serves the management API for one telescope and one dome.
func fakeAlpacaServer(t *testing.T) (*httptest.Server, string, int) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/management/v1/description", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Value":{"ServerName":"Observatory","Manufacturer":"ASCOM Initiative","ManufacturerVersion":"1.2","Location":"roof"}}`))
	})
	mux.HandleFunc("/management/v1/configureddevices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Value":[
			{"DeviceName":"Main Scope","DeviceType":"Telescope","DeviceNumber":0,"UniqueID":"u-1"},
			{"DeviceName":"Roof","DeviceType":"Dome","DeviceNumber":0,"UniqueID":"u-2"}
		]}`))
	})

	server := httptest.NewServer(mux)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse %s: %v", server.URL, err)
	}
	port, _ := strconv.Atoi(u.Port())
	return server, u.Hostname(), port
}

func testOrchestrator() (*Orchestrator, *discovery.Discoverer, *registry.Registry) {
	disc := discovery.NewDiscoverer()
	disc.Window = 10 * time.Millisecond
	reg := registry.New(nil)
	resolver := resolve.NewResolver(nil, time.Second)
	return New(disc, resolver, reg), disc, reg
}

func TestAddManualDevice(t *testing.T) {
	server, host, port := fakeAlpacaServer(t)
	defer server.Close()

	orch, disc, reg := testOrchestrator()

	added, err := orch.AddManualDevice(context.Background(), host, port)
	if err != nil {
		t.Fatalf("AddManualDevice() error = %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added %d devices, want 2", len(added))
	}

	wantID := registry.DeviceID(host, port, "telescope", 0)
	if !reg.Has(wantID) {
		t.Errorf("registry should hold %s", wantID)
	}

	// Verified server lands in the discovery cache with resolved info
	servers := disc.Servers()
	if len(servers) != 1 {
		t.Fatalf("discovery cache holds %d servers, want 1", len(servers))
	}
	if !servers[0].IsManual {
		t.Error("cache entry should be flagged manual")
	}
	if servers[0].ServerName != "Observatory" {
		t.Errorf("ServerName = %q, resolved info should be recorded", servers[0].ServerName)
	}
}

// TestAddManualDevice_Idempotent verifies re-adding the same server registers
// nothing new.
func TestAddManualDevice_Idempotent(t *testing.T) {
	server, host, port := fakeAlpacaServer(t)
	defer server.Close()

	orch, _, reg := testOrchestrator()

	if _, err := orch.AddManualDevice(context.Background(), host, port); err != nil {
		t.Fatalf("first AddManualDevice() error = %v", err)
	}
	added, err := orch.AddManualDevice(context.Background(), host, port)
	if err != nil {
		t.Fatalf("second AddManualDevice() error = %v", err)
	}

	if len(added) != 0 {
		t.Errorf("second add registered %d devices, want 0", len(added))
	}
	if reg.Len() != 2 {
		t.Errorf("registry holds %d devices, want 2", reg.Len())
	}
}

// TestAddManualDevice_Unreachable verifies verify-first semantics: an
// unreachable target leaves both the registry and discovery cache untouched.
func TestAddManualDevice_Unreachable(t *testing.T) {
	server, host, port := fakeAlpacaServer(t)
	server.Close() // Nothing listening anymore

	orch, disc, reg := testOrchestrator()

	_, err := orch.AddManualDevice(context.Background(), host, port)
	if err == nil {
		t.Fatal("AddManualDevice() should fail for unreachable target")
	}

	if reg.Len() != 0 {
		t.Error("failed add must not register devices")
	}
	if len(disc.Servers()) != 0 {
		t.Error("failed add must not enter the discovery cache")
	}
}

func TestAddManualDevice_InvalidInput(t *testing.T) {
	orch, _, _ := testOrchestrator()

	tests := []struct {
		name    string
		address string
		port    int
	}{
		{"Bad address", "not-an-ip", 11111},
		{"Port zero", "10.0.0.5", 0},
		{"Port too high", "10.0.0.5", 99999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.AddManualDevice(context.Background(), tt.address, tt.port)
			if !alpaca.IsValidationError(err) {
				t.Errorf("AddManualDevice(%s, %d) error = %v, want validation error", tt.address, tt.port, err)
			}
		})
	}
}

// TestRegisterServer_Dedup verifies repeated resolution of the same server
// skips already-registered devices instead of duplicating them.
func TestRegisterServer_Dedup(t *testing.T) {
	server, host, port := fakeAlpacaServer(t)
	defer server.Close()

	orch, _, reg := testOrchestrator()
	discovered := &discovery.DiscoveredServer{Address: host, Port: port}

	first := &Result{Failures: make(map[string]error)}
	orch.registerServer(context.Background(), discovered, first)
	if len(first.Added) != 2 || first.Skipped != 0 {
		t.Fatalf("first cycle added %d skipped %d, want 2/0", len(first.Added), first.Skipped)
	}

	second := &Result{Failures: make(map[string]error)}
	orch.registerServer(context.Background(), discovered, second)
	if len(second.Added) != 0 || second.Skipped != 2 {
		t.Errorf("second cycle added %d skipped %d, want 0/2", len(second.Added), second.Skipped)
	}
	if reg.Len() != 2 {
		t.Errorf("registry holds %d devices, want 2", reg.Len())
	}
}

// TestRegisterServer_FailureIsolated verifies one unresolvable server records
// a failure without erroring the cycle.
func TestRegisterServer_FailureIsolated(t *testing.T) {
	server, host, port := fakeAlpacaServer(t)
	server.Close()

	orch, _, reg := testOrchestrator()
	discovered := &discovery.DiscoveredServer{Address: host, Port: port}

	result := &Result{Failures: make(map[string]error)}
	orch.registerServer(context.Background(), discovered, result)

	if len(result.Failures) != 1 {
		t.Fatalf("recorded %d failures, want 1", len(result.Failures))
	}
	if _, ok := result.Failures[discovered.Key()]; !ok {
		t.Error("failure should be keyed by server")
	}
	if reg.Len() != 0 {
		t.Error("failed resolution must not register devices")
	}
}

// TestDiscoverAndRegister_ScanFailure verifies a failed scan still publishes
// the discovery stop event.
func TestDiscoverAndRegister_ScanFailure(t *testing.T) {
	orch, disc, reg := testOrchestrator()
	disc.Close() // Scans now fail with ErrClosed

	var seen []registry.EventType
	reg.Events().AddListener(func(e registry.Event) {
		seen = append(seen, e.Type)
	})

	_, err := orch.DiscoverAndRegister(context.Background())
	if err == nil {
		t.Fatal("DiscoverAndRegister() should fail when the discoverer is closed")
	}

	want := []registry.EventType{registry.EventDiscoveryStarted, registry.EventDiscoveryStopped}
	if len(seen) != len(want) {
		t.Fatalf("saw events %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

// TestResultNames verifies the summary name projection.
func TestResultNames(t *testing.T) {
	r := &Result{Added: []*registry.UnifiedDevice{
		{Name: "Main Scope"},
		{Name: "Roof"},
	}}

	names := r.Names()
	if len(names) != 2 || names[0] != "Main Scope" || names[1] != "Roof" {
		t.Errorf("Names() = %v, want [Main Scope Roof]", names)
	}
}
