// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the agent's bounded, optionally persistent log of
// timestamped entries.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
)

// DefaultCapacity is the entry bound used when none is configured.
const DefaultCapacity = 1000

// Entry is one remembered item.
type Entry struct {
	ID        uuid.UUID   `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
	Metadata  core.Params `json:"metadata"`
}

func (e Entry) clone() Entry {
	e.Data = core.CloneValue(e.Data)
	e.Metadata = e.Metadata.Clone()
	return e
}

// Config bounds and persists a Store.
type Config struct {
	Capacity    int
	Persistent  bool
	PersistPath string
}

// DefaultConfig returns an in-memory store holding up to DefaultCapacity entries.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// Validate rejects a zero capacity and persistence without a path.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return errors.InvalidConfig("memory capacity must be at least 1")
	}
	if c.Persistent && strings.TrimSpace(c.PersistPath) == "" {
		return errors.InvalidConfig("memory persist path is required when persistence is enabled")
	}
	return nil
}

// Persister writes and reads the full entry list.
type Persister interface {
	Save(ctx context.Context, entries []Entry) error
	Load(ctx context.Context) ([]Entry, error)
}

// Observer is notified of store size changes and evictions.
type Observer interface {
	RecordEviction(ctx context.Context)
	SetMemoryEntries(ctx context.Context, n int)
}

// Store keeps at most Capacity entries in insertion order, evicting the
// oldest first. When persistence is enabled every Add and Clear rewrites the
// whole snapshot. Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	entries   *ring
	persister Persister
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister replaces the file persister used when Config.Persistent is set.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithObserver reports evictions and sizes, typically to telemetry.Metrics.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store. Persisted entries are not read until Load.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		cfg:     cfg,
		entries: newRing(cfg.Capacity),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Persistent && s.persister == nil {
		s.persister = NewFileStore(cfg.PersistPath)
	}
	if !cfg.Persistent {
		s.persister = nil
	}
	return s, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// Add appends a new entry and returns its id, evicting the oldest entry when
// the store is full. If persisting the snapshot fails the entry stays in
// memory and its id is returned together with a MEMORY_ERROR.
func (s *Store) Add(ctx context.Context, data any, metadata core.Params) (uuid.UUID, error) {
	if metadata == nil {
		metadata = core.Params{}
	}
	entry := Entry{
		ID:        uuid.New(),
		Timestamp: s.now(),
		Data:      core.CloneValue(data),
		Metadata:  metadata.Clone(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, evicted := s.entries.push(entry); evicted && s.observer != nil {
		s.observer.RecordEviction(ctx)
	}
	if s.observer != nil {
		s.observer.SetMemoryEntries(ctx, s.entries.len())
	}
	if err := s.persistLocked(ctx); err != nil {
		return entry.ID, err
	}
	return entry.ID, nil
}

// Get returns a copy of the entry with id.
func (s *Store) Get(id uuid.UUID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.entries.len(); i++ {
		if e := s.entries.at(i); e.ID == id {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Search returns copies of every entry whose JSON-encoded data contains
// query, oldest first. The match is case-sensitive and HTML characters are
// not escaped. The empty query matches everything.
func (s *Store) Search(query string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		out []Entry
		buf bytes.Buffer
	)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := 0; i < s.entries.len(); i++ {
		e := s.entries.at(i)
		buf.Reset()
		if err := enc.Encode(e.Data); err != nil {
			continue
		}
		if strings.Contains(strings.TrimSuffix(buf.String(), "\n"), query) {
			out = append(out, e.clone())
		}
	}
	return out
}

// List returns copies of all entries, oldest first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(true)
}

// Len returns the number of entries held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.len()
}

// Clear removes every entry and persists the empty snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.reset()
	if s.observer != nil {
		s.observer.SetMemoryEntries(ctx, 0)
	}
	return s.persistLocked(ctx)
}

// Load replaces the in-memory entries with the persisted snapshot. A missing
// snapshot leaves the store empty. When the snapshot holds more than Capacity
// entries only the newest Capacity are kept. Load is a no-op when
// persistence is disabled.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return errors.MemoryError("load memory", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.reset()
	if len(loaded) > s.cfg.Capacity {
		loaded = loaded[len(loaded)-s.cfg.Capacity:]
	}
	for _, e := range loaded {
		s.entries.push(e)
	}
	if s.observer != nil {
		s.observer.SetMemoryEntries(ctx, s.entries.len())
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.snapshotLocked(false)); err != nil {
		s.logger.ErrorContext(ctx, "memory.persist.error",
			slog.String("path", s.cfg.PersistPath),
			slog.String("error", err.Error()),
		)
		return errors.MemoryError("persist memory", err)
	}
	return nil
}

func (s *Store) snapshotLocked(deep bool) []Entry {
	out := make([]Entry, 0, s.entries.len())
	for i := 0; i < s.entries.len(); i++ {
		e := s.entries.at(i)
		if deep {
			e = e.clone()
		}
		out = append(out, e)
	}
	return out
}
