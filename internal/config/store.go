package config

import (
	"sync"
	"sync/atomic"
	"time"
)

// Update describes one accepted change to the runtime configuration.
type Update struct {
	Source    string
	AppliedAt time.Time
	Applied   []string
	Payload   map[string]interface{}
	Previous  RuntimeConfig
	Config    RuntimeConfig
}

// Store publishes RuntimeConfig snapshots. Readers never block: Snapshot is a
// single atomic load. Writers are serialised by a mutex so that two
// concurrent updates cannot both merge against the same base.
type Store struct {
	current atomic.Pointer[RuntimeConfig]

	mu          sync.Mutex
	subscribers []func(Update)
	now         func() time.Time
}

// NewStore returns a Store whose first snapshot is initial.
func NewStore(initial RuntimeConfig) *Store {
	s := &Store{now: time.Now}
	s.current.Store(&initial)
	return s
}

// Snapshot returns the current configuration by value.
func (s *Store) Snapshot() RuntimeConfig {
	return *s.current.Load()
}

// Subscribe registers fn to be called after every accepted update. Callbacks
// run on the writer's goroutine while the writer lock is held, so they must
// not call back into the Store.
func (s *Store) Subscribe(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// ApplyJSON parses data as a JSON object and applies it. See Apply.
func (s *Store) ApplyJSON(source string, data []byte) (Update, error) {
	updates, err := ParseUpdate(data)
	if err != nil {
		return Update{}, err
	}
	return s.Apply(source, updates)
}

// Apply merges updates into the current configuration and publishes the
// result. Nothing is published when the update is rejected or when it names
// no recognised key.
func (s *Store) Apply(source string, updates map[string]interface{}) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := *s.current.Load()
	next, applied, err := prev.WithUpdates(updates)
	if err != nil {
		return Update{}, err
	}
	u := Update{
		Source:    source,
		AppliedAt: s.now(),
		Applied:   applied,
		Payload:   updates,
		Previous:  prev,
		Config:    next,
	}
	if len(applied) == 0 {
		return u, nil
	}
	s.publish(u)
	return u, nil
}

// Replace validates cfg and publishes it in place of the current
// configuration.
func (s *Store) Replace(source string, cfg RuntimeConfig) (Update, error) {
	if err := cfg.Validate(); err != nil {
		return Update{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := Update{
		Source:    source,
		AppliedAt: s.now(),
		Applied:   Keys(),
		Previous:  *s.current.Load(),
		Config:    cfg,
	}
	s.publish(u)
	return u, nil
}

// publish must be called with s.mu held.
func (s *Store) publish(u Update) {
	cfg := u.Config
	s.current.Store(&cfg)
	for _, fn := range s.subscribers {
		fn(u)
	}
}
