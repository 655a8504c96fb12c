package hass

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/muurk/hassupdate/internal/i18n"
	"github.com/muurk/hassupdate/internal/update"
)

// API is the subset of Client the Host needs.
type API interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	ReleaseNotes(ctx context.Context, entityID string) (string, error)
}

// ServiceError reports a failed dispatch to HostOptions.OnError.
type ServiceError struct {
	Domain  string
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s.%s failed: %s", e.Domain, e.Service, GetShortErrorMessage(e.Err))
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// HostOptions configures a Host.
type HostOptions struct {
	// Timeout bounds each service call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Synchronous makes CallService block until the call completes. The CLI
	// uses this so the process does not exit before the command lands.
	Synchronous bool

	// OnError receives dispatch failures.
	OnError func(err *ServiceError)
}

// Host adapts a Client and a Localizer to update.Host and
// update.ReleaseNotesFetcher.
type Host struct {
	api  API
	loc  *i18n.Localizer
	opts HostOptions
	wg   sync.WaitGroup
}

var (
	_ update.Host                = (*Host)(nil)
	_ update.ReleaseNotesFetcher = (*Host)(nil)
)

// NewHost creates a Host.
func NewHost(api API, loc *i18n.Localizer, opts HostOptions) *Host {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Host{api: api, loc: loc, opts: opts}
}

// Localize implements update.Host.
func (h *Host) Localize(key string) string {
	if h.loc == nil {
		return key
	}
	return h.loc.Localize(key)
}

// FormatEntityAttributeName implements update.Host.
func (h *Host) FormatEntityAttributeName(e *update.Entity, attribute string) string {
	domain := update.Domain
	if e != nil {
		if d, _, ok := strings.Cut(e.EntityID, "."); ok {
			domain = d
		}
	}
	if h.loc == nil {
		return i18n.Humanize(attribute)
	}
	return h.loc.AttributeName(domain, attribute)
}

// CallService implements update.Host. It never reports failure to the
// caller; errors go to OnError.
func (h *Host) CallService(domain, service string, data update.ServiceData) {
	h.wg.Add(1)
	run := func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.opts.Timeout)
		defer cancel()

		if err := h.api.CallService(ctx, domain, service, data); err != nil && h.opts.OnError != nil {
			h.opts.OnError(&ServiceError{Domain: domain, Service: service, Err: err})
		}
	}

	if h.opts.Synchronous {
		run()
		return
	}
	go run()
}

// Wait blocks until every dispatched call has completed.
func (h *Host) Wait() {
	h.wg.Wait()
}

// ReleaseNotes implements update.ReleaseNotesFetcher.
func (h *Host) ReleaseNotes(ctx context.Context, entityID string) (string, error) {
	return h.api.ReleaseNotes(ctx, entityID)
}
