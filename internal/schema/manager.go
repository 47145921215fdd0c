package schema

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/cache"
	"github.com/dbscope/dbscope/internal/database"
)

// Manager owns the snapshot lifecycle: load from cache or build on first
// use, serve concurrent reads, and rebuild on demand. Readers see either
// the old snapshot or the new one, never a partial state.
type Manager struct {
	extractor    *Extractor
	store        cache.Store
	cacheKey     string
	signature    string
	targetSchema string
	logger       *zap.Logger

	mu   sync.RWMutex // guards snap
	snap *Snapshot

	initMu    sync.Mutex // serializes extraction: first initialization and rebuilds
	rebuildMu sync.Mutex // at most one rebuild at a time
}

func NewManager(extractor *Extractor, store cache.Store, signature, targetSchema string, logger *zap.Logger) *Manager {
	return &Manager{
		extractor:    extractor,
		store:        store,
		cacheKey:     CacheKey(signature),
		signature:    signature,
		targetSchema: targetSchema,
		logger:       logger,
	}
}

// CacheKey names the cache entry holding the snapshot for a connection
// signature.
func CacheKey(signature string) string {
	return "snapshot-" + signature + ".json"
}

// Snapshot returns the current snapshot, initializing it on first use.
// Concurrent first calls share a single initialization; a failed one leaves
// the manager uninitialized so a later call can try again.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	snap := m.snap
	m.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.mu.RLock()
	snap = m.snap
	m.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	snap, err := m.loadOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	return snap, nil
}

// Initialize warms the snapshot eagerly. Optional; the first read triggers
// the same path.
func (m *Manager) Initialize(ctx context.Context) error {
	_, err := m.Snapshot(ctx)
	return err
}

func (m *Manager) loadOrBuild(ctx context.Context) (*Snapshot, error) {
	if m.store != nil {
		data, err := m.store.Get(ctx, m.cacheKey)
		switch {
		case err == nil:
			snap, decErr := DecodeSnapshot(data, m.signature)
			if decErr == nil {
				m.logger.Info("loaded schema snapshot from cache",
					zap.String("key", m.cacheKey),
					zap.Int("tables", len(snap.TableNames)),
					zap.Time("builtAt", snap.BuiltAt))
				return snap, nil
			}
			m.logger.Warn("discarding cached snapshot", zap.Error(decErr))
		case cache.IsCacheMiss(err):
			m.logger.Info("no cached snapshot", zap.String("key", m.cacheKey))
		default:
			m.logger.Warn("cache read failed", zap.Error(err))
		}
	}
	return m.build(ctx)
}

func (m *Manager) build(ctx context.Context) (*Snapshot, error) {
	snap, warnings, err := m.extractor.Build(ctx, m.targetSchema)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		m.logger.Warn("incomplete extraction", zap.String("detail", w))
	}
	m.save(ctx, snap)
	return snap, nil
}

// save is best-effort: a failed write leaves the snapshot in memory and the
// next start rebuilding from the database.
func (m *Manager) save(ctx context.Context, snap *Snapshot) {
	if m.store == nil {
		return
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		m.logger.Warn("failed to encode snapshot for cache", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, m.cacheKey, data); err != nil {
		m.logger.Warn("failed to write snapshot cache", zap.Error(err))
		return
	}
	m.logger.Info("schema snapshot cached", zap.String("key", m.cacheKey), zap.Int("bytes", len(data)))
}

// Rebuild runs a fresh extraction and swaps it in atomically. While the
// rebuild runs, reads keep serving the previous snapshot; a failed rebuild
// leaves it untouched. A rebuild requested while another is running is
// rejected with ErrRebuildInProgress; one requested during first
// initialization waits for it, then extracts.
func (m *Manager) Rebuild(ctx context.Context) (*Snapshot, error) {
	if !m.rebuildMu.TryLock() {
		return nil, &ErrRebuildInProgress{}
	}
	defer m.rebuildMu.Unlock()

	// initMu keeps a first-use initialization from extracting in parallel
	// with the rebuild.
	m.initMu.Lock()
	defer m.initMu.Unlock()

	snap, err := m.build(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
	return snap, nil
}

// Table returns the named table, or nearby name suggestions when the
// lookup misses.
func (m *Manager) Table(ctx context.Context, name string) (*database.TableInfo, []string, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if t, ok := snap.Table(name); ok {
		return t, nil, nil
	}
	return nil, snap.SuggestTables(name, 3), nil
}

func (m *Manager) SearchTables(ctx context.Context, term string, limit int) ([]*database.TableInfo, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.SearchTables(term, limit), nil
}

func (m *Manager) SearchColumns(ctx context.Context, term string, limit int) ([]ColumnMatch, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.SearchColumns(term, limit), nil
}

func (m *Manager) Dependents(ctx context.Context, table string) ([]Dependent, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Dependents(table), nil
}

func (m *Manager) Related(ctx context.Context, table string) (Relations, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return Relations{}, err
	}
	return snap.Related(table), nil
}

func (m *Manager) CodeObjects(ctx context.Context, kind, namePattern string) ([]*database.CodeObjectInfo, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.CodeObjects(kind, namePattern), nil
}

func (m *Manager) UserTypes(ctx context.Context, namePattern string) ([]*database.UserTypeInfo, error) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.UserTypes(namePattern), nil
}
