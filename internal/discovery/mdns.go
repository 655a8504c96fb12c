package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
)

const (
	// ServiceType is the mDNS service type Home Assistant advertises
	ServiceType = "_home-assistant._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default Home Assistant HTTP port
	DefaultPort = 8123
)

// Scanner handles mDNS instance discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForInstances discovers every instance that answers before the timeout
func (s *Scanner) ScanForInstances() ([]*Instance, error) {
	return s.ScanForInstancesWithContext(context.Background())
}

// ScanForInstancesWithContext discovers instances with a custom context.
// Results are de-duplicated by Key and sorted by name.
func (s *Scanner) ScanForInstancesWithContext(ctx context.Context) ([]*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var mu sync.Mutex
	found := make(map[string]*Instance)

	go func() {
		for entry := range entries {
			inst := s.parseServiceEntry(entry)
			if inst == nil {
				continue
			}
			logging.Debug("Discovered Home Assistant instance",
				zap.String("name", inst.Name),
				zap.String("url", inst.URL()),
				zap.String("uuid", inst.UUID),
			)
			mu.Lock()
			found[inst.Key()] = inst
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return sortInstances(found), nil
}

// WaitForInstance waits for the instance with the given UUID
func (s *Scanner) WaitForInstance(uuid string) (*Instance, error) {
	return s.WaitForInstanceWithContext(context.Background(), uuid)
}

// WaitForInstanceWithContext waits for a specific instance with a custom context
func (s *Scanner) WaitForInstanceWithContext(ctx context.Context, uuid string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	instChan := make(chan *Instance, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			inst := s.parseServiceEntry(entry)
			if inst != nil && inst.UUID == uuid {
				instChan <- inst
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case inst := <-instChan:
		return inst, nil
	case <-ctx.Done():
		select {
		case inst := <-instChan:
			return inst, nil
		default:
		}
		return nil, fmt.Errorf("instance %s not found within timeout", uuid)
	}
}

// parseServiceEntry converts a zeroconf service entry to an Instance.
// Returns nil when the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Instance {
	if entry == nil {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	// an advertised URL is enough to connect without a resolved address
	if ip == "" && metadata[TXTBaseURL] == "" && metadata[TXTInternalURL] == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	name := metadata[TXTLocationName]
	if name == "" {
		name = entry.Instance
	}

	return &Instance{
		UUID:         metadata[TXTUUID],
		Name:         name,
		Version:      metadata[TXTVersion],
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func sortInstances(found map[string]*Instance) []*Instance {
	instances := make([]*Instance, 0, len(found))
	for _, inst := range found {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(a, b int) bool {
		if instances[a].Name != instances[b].Name {
			return instances[a].Name < instances[b].Name
		}
		return instances[a].Key() < instances[b].Key()
	})
	return instances
}

// ScanForInstances is a convenience function to scan with a custom timeout
func ScanForInstances(timeout time.Duration) ([]*Instance, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForInstances()
}

// FindInstance searches for an instance by UUID with the default timeout
func FindInstance(uuid string) (*Instance, error) {
	return NewScanner().WaitForInstance(uuid)
}
