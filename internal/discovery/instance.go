package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys published by Home Assistant
const (
	TXTBaseURL      = "base_url"
	TXTInternalURL  = "internal_url"
	TXTExternalURL  = "external_url"
	TXTVersion      = "version"
	TXTUUID         = "uuid"
	TXTLocationName = "location_name"
)

// Instance is a Home Assistant server found on the network
type Instance struct {
	// UUID identifies the installation and survives IP changes
	UUID string

	// Name is the configured location name, e.g. "Home"
	Name string

	// Version is the running Home Assistant version
	Version string

	// Hostname is the mDNS hostname (e.g., "homeassistant.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port (typically 8123)
	Port int

	// Metadata holds every TXT record key
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	name := i.Name
	if name == "" {
		name = i.Hostname
	}
	return fmt.Sprintf("Home Assistant %s (%s) at %s", name, i.Version, i.URL())
}

// URL returns the address to connect to: the advertised internal URL, then
// the base URL, then the resolved address.
func (i *Instance) URL() string {
	for _, key := range []string{TXTInternalURL, TXTBaseURL} {
		if u := i.GetMetadata(key); u != "" {
			return u
		}
	}
	return "http://" + net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// Key identifies the instance in the config registry
func (i *Instance) Key() string {
	if i.UUID != "" {
		return i.UUID
	}
	return i.Hostname
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
