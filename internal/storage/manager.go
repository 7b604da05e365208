package storage

import (
	"context"

	"github.com/lmarchetti/inkwell/internal/cache"
)

// Manager owns the backend registry and a configured default. Backends are
// registered once at startup; afterwards the registry is only read, possibly
// by many in-flight requests at once.
type Manager struct {
	backends    *cache.Cache[Kind, Storage]
	defaultKind Kind
}

func NewManager(defaultKind Kind) *Manager {
	return &Manager{
		backends:    cache.NewCache[Kind, Storage](),
		defaultKind: defaultKind,
	}
}

// AddBackend registers a backend, overwriting any previous registration for
// the same kind.
func (m *Manager) AddBackend(backend Storage) {
	m.backends.Set(backend.Kind(), backend)
}

func (m *Manager) Backend(kind Kind) (Storage, bool) {
	return m.backends.Get(kind)
}

// Default returns the configured default backend. A missing default is a
// process-level misconfiguration, not a runtime condition to recover from.
func (m *Manager) Default() Storage {
	backend, ok := m.backends.Get(m.defaultKind)
	if !ok {
		storageLogger.Fatal().Str("kind", string(m.defaultKind)).Msg("Default storage backend not configured")
	}
	return backend
}

func (m *Manager) DefaultKind() Kind {
	return m.defaultKind
}

func (m *Manager) Kinds() []Kind {
	return m.backends.Keys()
}

// Store forwards to the default backend. Convenience for callers that do not
// care about backend selection.
func (m *Manager) Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error) {
	return m.Default().Store(ctx, content, metadata)
}
