package server

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/update"
)

const (
	// DefaultInstallStep is the time between simulated progress updates
	DefaultInstallStep = time.Second

	// installSteps is how many progress updates an install takes
	installSteps = 5
)

// Result error codes, as sent by Home Assistant
const (
	CodeNotFound          = "not_found"
	CodeUnknownCommand    = "unknown_command"
	CodeInvalidFormat     = "invalid_format"
	CodeHomeAssistant     = "home_assistant_error"
	CodeServiceValidation = "service_validation_error"
	CodeNotSupported      = "not_supported"
)

// ResultError is sent back as an unsuccessful result.
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func resultErrorf(code, format string, args ...any) *ResultError {
	return &ResultError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wireState is an entity as it appears in get_states and state_changed.
type wireState struct {
	EntityID    string            `json:"entity_id"`
	State       string            `json:"state"`
	Attributes  update.Attributes `json:"attributes"`
	LastChanged time.Time         `json:"last_changed"`
	LastUpdated time.Time         `json:"last_updated"`
}

// StateChange is delivered to subscribers. Old is nil for new entities.
type StateChange struct {
	EntityID string     `json:"entity_id"`
	Old      *wireState `json:"old_state"`
	New      *wireState `json:"new_state"`
}

type record struct {
	entity      *update.Entity
	notes       *string
	fail        map[string]bool
	lastChanged time.Time
	lastUpdated time.Time
}

func (r *record) wire() *wireState {
	return &wireState{
		EntityID:    r.entity.EntityID,
		State:       r.entity.State,
		Attributes:  r.entity.Attributes,
		LastChanged: r.lastChanged,
		LastUpdated: r.lastUpdated,
	}
}

// Store holds the simulated entities and runs installs.
type Store struct {
	installStep time.Duration

	mu        sync.Mutex
	order     []string
	records   map[string]*record
	listeners map[int]func(StateChange)
	nextID    int

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore loads fixtures into a store. A zero installStep means
// DefaultInstallStep.
func NewStore(f *Fixtures, installStep time.Duration) *Store {
	if installStep <= 0 {
		installStep = DefaultInstallStep
	}

	s := &Store{
		installStep: installStep,
		records:     make(map[string]*record, len(f.Entities)),
		listeners:   make(map[int]func(StateChange)),
		stop:        make(chan struct{}),
	}

	now := time.Now().UTC()
	for _, ef := range f.Entities {
		rec := &record{
			entity:      ef.entity(),
			notes:       ef.ReleaseNotes,
			fail:        make(map[string]bool, len(ef.Fail)),
			lastChanged: now,
			lastUpdated: now,
		}
		for _, svc := range ef.Fail {
			rec.fail[svc] = true
		}
		s.order = append(s.order, ef.EntityID)
		s.records[ef.EntityID] = rec
	}
	return s
}

// States returns every entity in fixture order.
func (s *Store) States() []*wireState {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]*wireState, 0, len(s.order))
	for _, id := range s.order {
		states = append(states, s.records[id].wire())
	}
	return states
}

// Entity returns a copy of an entity snapshot.
func (s *Store) Entity(entityID string) (*update.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[entityID]
	if !ok {
		return nil, false
	}
	e := *rec.entity
	return &e, true
}

// ReleaseNotes answers update/release_notes. A nil result is sent as null.
func (s *Store) ReleaseNotes(entityID string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[entityID]
	if !ok || !update.IsUpdateEntity(entityID) {
		return nil, resultErrorf(CodeNotFound, "Entity not found")
	}
	if !update.SupportsFeature(rec.entity, update.FeatureReleaseNotes) {
		return nil, resultErrorf(CodeNotSupported, "Entity does not support release notes")
	}
	if rec.fail["release_notes"] {
		return nil, resultErrorf(CodeHomeAssistant, "Failed to fetch release notes for %s", entityID)
	}
	return rec.notes, nil
}

// Subscribe registers fn for every state change. fn runs with the store
// locked and must not block.
func (s *Store) Subscribe(fn func(StateChange)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close stops running installs and waits for them to exit.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// CallService applies an update service call.
func (s *Store) CallService(domain, service string, data map[string]any) error {
	if domain != update.Domain {
		return resultErrorf(CodeNotFound, "Service %s.%s not found.", domain, service)
	}

	ids, err := entityIDs(data)
	if err != nil {
		return err
	}

	for _, id := range ids {
		var err error
		switch service {
		case update.ServiceInstall:
			err = s.install(id, data)
		case update.ServiceSkip:
			err = s.skip(id)
		case update.ServiceClearSkipped:
			err = s.clearSkipped(id)
		default:
			return resultErrorf(CodeNotFound, "Service %s.%s not found.", domain, service)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// entityIDs accepts entity_id as a string or a list.
func entityIDs(data map[string]any) ([]string, error) {
	switch v := data["entity_id"].(type) {
	case string:
		return []string{v}, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, resultErrorf(CodeInvalidFormat, "entity_id must be a string")
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, resultErrorf(CodeInvalidFormat, "required key not provided @ data['entity_id']")
	}
}

// lookup returns the record for a service call. The store must be locked.
func (s *Store) lookup(entityID, service string) (*record, error) {
	rec, ok := s.records[entityID]
	if !ok || !update.IsUpdateEntity(entityID) {
		return nil, resultErrorf(CodeServiceValidation, "Entity %s not found", entityID)
	}
	if update.IsUnavailableState(rec.entity.State) {
		return nil, resultErrorf(CodeHomeAssistant, "Entity %s is unavailable", entityID)
	}
	if rec.fail[service] {
		return nil, resultErrorf(CodeHomeAssistant, "Simulated %s failure for %s", service, entityID)
	}
	return rec, nil
}

func (s *Store) install(entityID string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(entityID, update.ServiceInstall)
	if err != nil {
		return err
	}
	e := rec.entity

	if !update.SupportsFeature(e, update.FeatureInstall) {
		return resultErrorf(CodeHomeAssistant, "Entity %s does not support install", entityID)
	}

	version, _ := data["version"].(string)
	if version != "" && !update.SupportsFeature(e, update.FeatureSpecificVersion) {
		return resultErrorf(CodeHomeAssistant, "Installing a specific version is not supported for %s", entityID)
	}
	if backup, _ := data["backup"].(bool); backup && !update.SupportsFeature(e, update.FeatureBackup) {
		return resultErrorf(CodeHomeAssistant, "Backup is not supported for %s", entityID)
	}
	if update.IsInstalling(e) {
		return resultErrorf(CodeHomeAssistant, "Update installation already in progress for %s", entityID)
	}

	target := version
	if target == "" {
		target = e.Attributes.LatestVersion
		if target == "" || target == e.Attributes.InstalledVersion {
			return resultErrorf(CodeHomeAssistant, "No update available for %s", entityID)
		}
	}

	next := *e
	next.Attributes.InProgress = true
	if update.SupportsFeature(e, update.FeatureProgress) {
		next.Attributes.UpdatePercentage = percentage(0)
	}
	s.publish(rec, &next)

	logging.Info("Simulating install",
		zap.String("entity_id", entityID),
		zap.String("version", target),
		zap.Duration("step", s.installStep),
	)

	s.wg.Add(1)
	go s.simulateInstall(entityID, target)
	return nil
}

func (s *Store) simulateInstall(entityID, target string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.installStep)
	defer ticker.Stop()

	for step := 1; step <= installSteps; step++ {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		rec := s.records[entityID]
		next := *rec.entity
		if step < installSteps {
			if update.SupportsFeature(&next, update.FeatureProgress) {
				next.Attributes.UpdatePercentage = percentage(float64(step * 100 / installSteps))
				s.publish(rec, &next)
			}
			s.mu.Unlock()
			continue
		}

		next.Attributes.InstalledVersion = target
		next.Attributes.InProgress = false
		next.Attributes.UpdatePercentage = nil
		next.State = computeState(&next)
		s.publish(rec, &next)
		s.mu.Unlock()

		logging.Info("Simulated install complete",
			zap.String("entity_id", entityID),
			zap.String("installed_version", target),
		)
	}
}

func (s *Store) skip(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(entityID, update.ServiceSkip)
	if err != nil {
		return err
	}
	if rec.entity.Attributes.AutoUpdate {
		return resultErrorf(CodeHomeAssistant, "Skipping update is not supported when automatic updates are enabled")
	}

	next := *rec.entity
	next.Attributes.SkippedVersion = next.Attributes.LatestVersion
	next.State = computeState(&next)
	s.publish(rec, &next)
	return nil
}

func (s *Store) clearSkipped(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(entityID, update.ServiceClearSkipped)
	if err != nil {
		return err
	}

	next := *rec.entity
	next.Attributes.SkippedVersion = ""
	next.State = computeState(&next)
	s.publish(rec, &next)
	return nil
}

// publish replaces the snapshot and notifies listeners. The store must be
// locked.
func (s *Store) publish(rec *record, next *update.Entity) {
	old := rec.wire()

	now := time.Now().UTC()
	if next.State != rec.entity.State {
		rec.lastChanged = now
	}
	rec.lastUpdated = now
	rec.entity = next

	change := StateChange{EntityID: next.EntityID, Old: old, New: rec.wire()}
	for _, fn := range s.listeners {
		fn(change)
	}
}

// computeState derives on/off from the versions.
func computeState(e *update.Entity) string {
	a := e.Attributes
	if a.InstalledVersion == "" || a.LatestVersion == "" {
		return update.StateUnknown
	}
	if a.LatestVersion == a.InstalledVersion || a.LatestVersion == a.SkippedVersion {
		return update.StateOff
	}
	return update.StateOn
}

func percentage(v float64) *float64 {
	return &v
}
