package proxy

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/logging"
)

// RoutePattern is the chi route the gateway must be mounted at.
const RoutePattern = "/proxy/{address}/{port}/*"

// Gateway is a stateless reverse proxy that forwards
// /proxy/{address}/{port}/... to http://{address}:{port}/... so browser
// callers stay same-origin. One proxy route per request; the shared
// transport reuses upstream connections as an optimization.
type Gateway struct {
	transport http.RoundTripper
}

// New creates a gateway with its own pooled transport.
func New() *Gateway {
	return &Gateway{
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       60 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// ServeHTTP forwards one request to the addressed upstream, stripping the
// /proxy/{address}/{port} prefix from the forwarded path.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	portParam := chi.URLParam(r, "port")
	rest := chi.URLParam(r, "*")

	port, err := strconv.Atoi(portParam)
	if err != nil || port < 1 || port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid port", fmt.Sprintf("invalid upstream port %q", portParam))
		return
	}
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid address", fmt.Sprintf("invalid upstream address %q", address))
		return
	}

	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path)

	target := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(address, portParam),
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = "/" + rest
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
		},
		Transport: g.transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Warn("Proxy upstream failure",
				zap.String("upstream", target.Host),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			// Only the message string crosses the proxy boundary; no
			// internal stack detail.
			writeError(w, http.StatusInternalServerError, "upstream request failed",
				fmt.Sprintf("failed to reach %s: %s", target.Host, err.Error()))
		},
	}

	rp.ServeHTTP(w, r)
}

// validAddress accepts an IP address or a plain hostname. Anything with path
// or scheme characters is rejected before it reaches the dialer.
func validAddress(address string) bool {
	if address == "" {
		return false
	}
	if strings.ContainsAny(address, "/\\@?#:") {
		return false
	}
	return true
}

// errorBody is the JSON error shape the gateway returns.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errText, Message: message})
}
