package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout for management calls
	DefaultTimeout = 10 * time.Second

	// ClientID identifies this application in Alpaca transaction bookkeeping.
	// Servers echo it back; the value is arbitrary but should be stable.
	ClientID = 4227

	// maxErrorBodyBytes caps how much of a plain-text error body is read for
	// inclusion in an error message.
	maxErrorBodyBytes = 512
)

// Client is an HTTP client for one Alpaca server's management and device APIs.
type Client struct {
	// Address is the server's IPv4 address (e.g., "192.168.1.50")
	Address string

	// Port is the server's Alpaca API port (distinct from the discovery port)
	Port int

	// BaseURL is the server base URL (e.g., "http://192.168.1.50:11111")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// ctid is the ClientTransactionID counter, incremented per request
	ctid atomic.Uint32
}

// NewClient creates a management API client for the server at address:port.
func NewClient(address string, port int) *Client {
	return &Client{
		Address:    address,
		Port:       port,
		BaseURL:    fmt.Sprintf("http://%s:%d", address, port),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewClientWithTimeout creates a client with a custom HTTP timeout.
func NewClientWithTimeout(address string, port int, timeout time.Duration) *Client {
	c := NewClient(address, port)
	c.HTTPClient.Timeout = timeout
	return c
}

// Server returns the address:port string used in error context.
func (c *Client) Server() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// nextTransactionID returns a fresh ClientTransactionID for one request.
func (c *Client) nextTransactionID() uint32 {
	return c.ctid.Add(1)
}

// transactionQuery builds the ClientID/ClientTransactionID query string
// appended to every request.
func (c *Client) transactionQuery() string {
	q := url.Values{}
	q.Set("ClientID", strconv.Itoa(ClientID))
	q.Set("ClientTransactionID", strconv.FormatUint(uint64(c.nextTransactionID()), 10))
	return q.Encode()
}

// get performs a GET against path and decodes the JSON envelope into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	reqURL := c.BaseURL + path + "?" + c.transactionQuery()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return NewValidationError(fmt.Sprintf("invalid request URL %q: %v", reqURL, err))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("request to %s failed", path), c.Server(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("reading response from %s failed", path), c.Server(), err)
	}

	// Alpaca management errors come back as plain text with 400/500 status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewHTTPError(resp.StatusCode, errorBodyMessage(path, resp.StatusCode, body), c.Server())
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewProtocolError(fmt.Sprintf("malformed response from %s", path), c.Server(), err)
	}

	return nil
}

// errorBodyMessage builds an error message from a non-2xx plain-text body.
func errorBodyMessage(path string, status int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyBytes {
		msg = msg[:maxErrorBodyBytes]
	}
	if msg == "" {
		return fmt.Sprintf("%s returned HTTP %d", path, status)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", path, status, msg)
}

// Description fetches the server metadata from /management/v1/description.
func (c *Client) Description(ctx context.Context) (*ServerDescription, error) {
	var resp descriptionResponse
	if err := c.get(ctx, "/management/v1/description", &resp); err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

// ConfiguredDevices fetches the device list from
// /management/v1/configureddevices.
func (c *Client) ConfiguredDevices(ctx context.Context) ([]ConfiguredDevice, error) {
	var resp configuredDevicesResponse
	if err := c.get(ctx, "/management/v1/configureddevices", &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// APIVersions fetches the supported Alpaca API versions from
// /management/apiversions.
func (c *Client) APIVersions(ctx context.Context) ([]int, error) {
	var resp apiVersionsResponse
	if err := c.get(ctx, "/management/apiversions", &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// SetConnected sets the Connected property on one device. This is the
// side effect the device registry invokes during connect and disconnect
// transitions.
func (c *Client) SetConnected(ctx context.Context, deviceType string, deviceNumber int, connected bool) error {
	path := fmt.Sprintf("/api/v1/%s/%d/connected", strings.ToLower(deviceType), deviceNumber)

	form := url.Values{}
	form.Set("Connected", strconv.FormatBool(connected))
	form.Set("ClientID", strconv.Itoa(ClientID))
	form.Set("ClientTransactionID", strconv.FormatUint(uint64(c.nextTransactionID()), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return NewValidationError(fmt.Sprintf("invalid request URL %q: %v", c.BaseURL+path, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("request to %s failed", path), c.Server(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("reading response from %s failed", path), c.Server(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewHTTPError(resp.StatusCode, errorBodyMessage(path, resp.StatusCode, body), c.Server())
	}

	var envelope deviceResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return NewProtocolError(fmt.Sprintf("malformed response from %s", path), c.Server(), err)
	}

	// HTTP 200 with a non-zero ErrorNumber is how Alpaca devices report
	// command failures
	if envelope.ErrorNumber != 0 {
		return NewDeviceError(envelope.ErrorNumber, envelope.ErrorMessage, c.Server())
	}

	return nil
}
