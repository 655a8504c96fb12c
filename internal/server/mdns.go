package server

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/discovery"
	"github.com/muurk/hassupdate/internal/logging"
)

// TXTRecords returns the records Home Assistant publishes with its service.
func (s *Server) TXTRecords(baseURL string) []string {
	return []string{
		discovery.TXTLocationName + "=" + s.fixtures.LocationName,
		discovery.TXTUUID + "=" + s.uuid,
		discovery.TXTVersion + "=" + s.fixtures.Version,
		discovery.TXTBaseURL + "=" + baseURL,
		discovery.TXTInternalURL + "=" + baseURL,
		"requires_api_password=True",
	}
}

// advertise registers the instance as _home-assistant._tcp.
func (s *Server) advertise() error {
	baseURL := s.BaseURL()
	if s.config.Host == "" {
		if hostname, err := os.Hostname(); err == nil {
			host := strings.TrimSuffix(hostname, ".local") + ".local"
			baseURL = strings.Replace(baseURL, "localhost", host, 1)
		}
	}

	port := s.config.Port
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	mdnsServer, err := zeroconf.Register(
		s.fixtures.LocationName,
		discovery.ServiceType,
		discovery.ServiceDomain,
		port,
		s.TXTRecords(baseURL),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.mdns = mdnsServer

	logging.Info("Advertising over mDNS",
		zap.String("service", discovery.ServiceType),
		zap.String("instance", s.fixtures.LocationName),
		zap.String("base_url", baseURL),
	)
	return nil
}
