package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openskies-io/alpacahub/internal/autodiscovery"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/registry"
	"github.com/openskies-io/alpacahub/internal/resolve"
)

type stubConnector struct {
	failWith error
}

func (c *stubConnector) Connect(ctx context.Context, d *registry.UnifiedDevice) error {
	return c.failWith
}

func (c *stubConnector) Disconnect(ctx context.Context, d *registry.UnifiedDevice) error {
	return c.failWith
}

func testServer(t *testing.T, connector registry.Connector) (*Server, *registry.Registry, *discovery.Discoverer) {
	t.Helper()

	disc := discovery.NewDiscoverer()
	disc.Window = 10 * time.Millisecond
	reg := registry.New(connector)
	resolver := resolve.NewResolver(nil, time.Second)
	orch := autodiscovery.New(disc, resolver, reg)

	srv, err := New(&Config{Host: "127.0.0.1", Port: 0}, Deps{
		Registry:     reg,
		Discoverer:   disc,
		Orchestrator: orch,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, reg, disc
}

func testDevice(id string) *registry.UnifiedDevice {
	return &registry.UnifiedDevice{
		ID:           id,
		Name:         "Main Scope",
		Type:         "telescope",
		DeviceNumber: 0,
		IPAddress:    "192.168.1.50",
		Port:         11111,
		Status:       registry.StatusIdle,
	}
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alpacahub_devices") {
		t.Error("metrics output should expose the device gauge")
	}
}

func TestListDevices(t *testing.T) {
	srv, reg, _ := testServer(t, nil)
	reg.Add(testDevice("192.168.1.50:11111:telescope:0"))

	rec := doRequest(srv, http.MethodGet, "/api/devices/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/devices status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []*registry.UnifiedDevice `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(body.Devices) != 1 || body.Devices[0].ID != "192.168.1.50:11111:telescope:0" {
		t.Errorf("devices = %+v, want the registered device", body.Devices)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/devices/no-such-device", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Error != "device not found" {
		t.Errorf("error = %q, want %q", body.Error, "device not found")
	}
}

func TestRemoveDevice(t *testing.T) {
	srv, reg, _ := testServer(t, nil)
	id := "192.168.1.50:11111:telescope:0"
	reg.Add(testDevice(id))

	rec := doRequest(srv, http.MethodDelete, "/api/devices/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}
	if reg.Has(id) {
		t.Error("device should be gone after DELETE")
	}

	rec = doRequest(srv, http.MethodDelete, "/api/devices/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rec.Code)
	}
}

func TestConnect(t *testing.T) {
	srv, reg, _ := testServer(t, &stubConnector{})
	id := "192.168.1.50:11111:telescope:0"
	reg.Add(testDevice(id))

	rec := doRequest(srv, http.MethodPost, "/api/devices/"+id+"/connect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST connect status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var device registry.UnifiedDevice
	if err := json.Unmarshal(rec.Body.Bytes(), &device); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !device.IsConnected || device.Status != registry.StatusConnected {
		t.Errorf("device = connected %v status %s, want connected", device.IsConnected, device.Status)
	}
}

func TestConnect_InvalidTimeout(t *testing.T) {
	srv, reg, _ := testServer(t, &stubConnector{})
	id := "192.168.1.50:11111:telescope:0"
	reg.Add(testDevice(id))

	for _, raw := range []string{"abc", "0", "-5"} {
		rec := doRequest(srv, http.MethodPost, "/api/devices/"+id+"/connect?timeoutSeconds="+raw, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("timeoutSeconds=%s status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestDisconnect_Idle(t *testing.T) {
	srv, reg, _ := testServer(t, &stubConnector{})
	id := "192.168.1.50:11111:telescope:0"
	reg.Add(testDevice(id))

	// Disconnecting an idle device is a no-op, not an error
	rec := doRequest(srv, http.MethodPost, "/api/devices/"+id+"/disconnect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST disconnect status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestAddManualDevice_BadBody(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/devices/", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddManualDevice_ValidationError(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/devices/", `{"address":"not-an-ip","port":11111}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Error != "invalid device" {
		t.Errorf("error = %q, want %q", body.Error, "invalid device")
	}
}

func TestDiscoveredServers_Empty(t *testing.T) {
	srv, _, _ := testServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/discovery/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Devices []*discovery.DiscoveredServer `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(body.Devices) != 0 {
		t.Errorf("devices = %+v, want empty", body.Devices)
	}
}

func TestDiscoveredServers_ManualEntry(t *testing.T) {
	srv, _, disc := testServer(t, nil)
	if _, err := disc.AddManual("10.0.0.5", 11111); err != nil {
		t.Fatalf("AddManual() error = %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/discovery/devices", "")
	var body struct {
		Devices []*discovery.DiscoveredServer `json:"devices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(body.Devices) != 1 || !body.Devices[0].IsManual {
		t.Errorf("devices = %+v, want one manual entry", body.Devices)
	}
}
