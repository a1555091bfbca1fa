package datasets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// ErrHandleNotFound indicates an unknown or expired dataset id.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// Gate bounds the number of tables held in memory (backed by runtime.Controller).
type Gate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator returns the canonical path of an allowed file or an error.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// LoadFunc reads a clickstream table from a validated path.
type LoadFunc func(ctx context.Context, path string, opts clickstream.LoadOptions) (*clickstream.Table, error)

// Handle is one loaded table with idle-expiry bookkeeping.
type Handle struct {
	ID       string
	Path     string
	Sheet    string
	Table    *clickstream.Table
	LoadedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time
}

// Info describes a handle for listing.
type Info struct {
	ID        string    `json:"dataset_id"`
	Path      string    `json:"path"`
	Sheet     string    `json:"sheet,omitempty"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	Sessions  int       `json:"sessions"`
	Users     int       `json:"users"`
	LoadedAt  time.Time `json:"loaded_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Info snapshots the handle.
func (h *Handle) Info() Info {
	h.mu.Lock()
	exp := h.expiresAt
	h.mu.Unlock()
	return Info{
		ID:        h.ID,
		Path:      h.Path,
		Sheet:     h.Sheet,
		Format:    h.Table.Format,
		Rows:      h.Table.Len(),
		Sessions:  len(h.Table.Sessions()),
		Users:     len(h.Table.Users()),
		LoadedAt:  h.LoadedAt,
		ExpiresAt: exp,
	}
}

// Expired reports whether the handle was idle past its TTL at now.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return now.After(h.expiresAt)
}

func (h *Handle) touch(now time.Time, ttl time.Duration) {
	h.mu.Lock()
	h.expiresAt = now.Add(ttl)
	h.mu.Unlock()
}

// Options configures a Manager. Zero values fall back to config defaults.
type Options struct {
	TTL          time.Duration
	CleanupEvery time.Duration
	MaxRows      int
	Gate         Gate
	Validator    PathValidator
	Load         LoadFunc
	Clock        func() time.Time
}

// Manager caches loaded tables by handle id and by canonical path. Opening the
// same path and sheet again returns the existing handle.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	byPath  map[string]string

	ttl          time.Duration
	cleanupEvery time.Duration
	maxRows      int
	gate         Gate
	validator    PathValidator
	load         LoadFunc
	clock        func() time.Time

	stopOnce  sync.Once
	stopCh    chan struct{}
	cleanupWG sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = config.DefaultDatasetIdleTTL
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = config.DefaultMaxRowsPerLoad
	}
	if opts.Load == nil {
		opts.Load = clickstream.Load
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          opts.TTL,
		cleanupEvery: opts.CleanupEvery,
		maxRows:      opts.MaxRows,
		gate:         opts.Gate,
		validator:    opts.Validator,
		load:         opts.Load,
		clock:        opts.Clock,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of idle handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops the cleanup loop and drops every handle.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	n := len(m.handles)
	m.handles = make(map[string]*Handle)
	m.byPath = make(map[string]string)
	m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.release()
	}
	return nil
}

// Open validates path, loads it and registers a handle. The bool result is
// true when an existing handle for the same file and sheet was reused.
func (m *Manager) Open(ctx context.Context, path, sheet string) (*Handle, bool, error) {
	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return nil, false, err
		}
		path = canonical
	}
	key := path + "\x00" + sheet

	m.mu.RLock()
	id, ok := m.byPath[key]
	h := m.handles[id]
	m.mu.RUnlock()
	if ok && h != nil {
		h.touch(m.clock(), m.ttl)
		return h, true, nil
	}

	if err := m.acquire(ctx); err != nil {
		return nil, false, err
	}
	start := m.clock()
	tbl, err := m.load(ctx, path, clickstream.LoadOptions{Sheet: sheet, MaxRows: m.maxRows})
	if err != nil {
		m.release()
		return nil, false, err
	}
	h, reused := m.register(path, sheet, tbl)
	if reused {
		// A concurrent Open of the same file registered first; share its handle.
		m.release()
		h.touch(m.clock(), m.ttl)
		return h, true, nil
	}
	zerolog.Ctx(ctx).Debug().
		Str("dataset_id", h.ID).
		Str("path", path).
		Int("rows", tbl.Len()).
		Dur("elapsed", m.clock().Sub(start)).
		Msg("dataset loaded")
	return h, false, nil
}

// register stores tbl under a new handle unless path and sheet are already
// live, in which case the existing handle is returned with true.
func (m *Manager) register(path, sheet string, tbl *clickstream.Table) (*Handle, bool) {
	now := m.clock()
	key := path + "\x00" + sheet

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byPath[key]; ok {
		if live, ok := m.handles[id]; ok {
			return live, true
		}
	}
	h := &Handle{ID: uuid.NewString(), Path: path, Sheet: sheet, Table: tbl, LoadedAt: now, expiresAt: now.Add(m.ttl)}
	m.handles[h.ID] = h
	m.byPath[key] = h.ID
	return h, false
}

// Get returns the handle and refreshes its idle deadline.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h.touch(m.clock(), m.ttl)
	return h, true
}

// CloseHandle drops a handle and frees its slot.
func (m *Manager) CloseHandle(id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		delete(m.byPath, h.Path+"\x00"+h.Sheet)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, id)
	}
	m.release()
	return nil
}

// EvictExpired drops handles idle past their TTL and returns their ids.
func (m *Manager) EvictExpired() []string {
	now := m.clock()
	var evicted []string
	m.mu.Lock()
	for id, h := range m.handles {
		if h.Expired(now) {
			delete(m.handles, id)
			delete(m.byPath, h.Path+"\x00"+h.Sheet)
			evicted = append(evicted, id)
		}
	}
	m.mu.Unlock()
	for range evicted {
		m.release()
	}
	sort.Strings(evicted)
	return evicted
}

// List returns every live handle, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h.Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadedAt.Equal(out[j].LoadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LoadedAt.Before(out[j].LoadedAt)
	})
	return out
}

// Count returns the number of live handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}
