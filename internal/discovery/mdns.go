package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/logging"
)

const (
	// MDNSServiceType is the DNS-SD service type some Alpaca servers
	// advertise in addition to answering UDP broadcasts
	MDNSServiceType = "_alpaca._tcp"

	// MDNSDomain is the mDNS domain (typically "local.")
	MDNSDomain = "local."
)

// MDNSBrowser is a secondary discovery source. It browses for advertised
// _alpaca._tcp services and feeds them into the same response cache as the
// UDP broadcast protocol. The broadcast protocol remains primary; mDNS only
// catches servers on networks where broadcasts are filtered.
type MDNSBrowser struct {
	discoverer *Discoverer
}

// NewMDNSBrowser creates a browser feeding the given discoverer's cache.
func NewMDNSBrowser(d *Discoverer) *MDNSBrowser {
	return &MDNSBrowser{discoverer: d}
}

// Browse listens for Alpaca service advertisements until the context is
// cancelled. Each advertisement becomes a cache entry keyed like a broadcast
// reply.
func (b *MDNSBrowser) Browse(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			b.handleEntry(entry)
		}
	}()

	if err := resolver.Browse(ctx, MDNSServiceType, MDNSDomain, entries); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// handleEntry converts one service advertisement into a cache entry.
func (b *MDNSBrowser) handleEntry(entry *zeroconf.ServiceEntry) {
	if len(entry.AddrIPv4) == 0 || entry.Port < 1 || entry.Port > 65535 {
		return
	}

	metadata := map[string]interface{}{
		"AlpacaPort": float64(entry.Port),
		"source":     "mdns",
	}
	for _, txt := range entry.Text {
		if k, v, found := strings.Cut(txt, "="); found {
			metadata[k] = v
		}
	}

	server := &DiscoveredServer{
		Address:      entry.AddrIPv4[0].String(),
		Port:         entry.Port,
		ServerName:   entry.Instance,
		DiscoveredAt: time.Now(),
		Metadata:     metadata,
	}

	logging.Debug("mDNS advertisement received",
		zap.String("instance", entry.Instance),
		zap.String("server", server.Key()),
	)
	b.discoverer.insert(server)
}
