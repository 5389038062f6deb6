package profile

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// SettingsStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type SettingsStore interface {
	SetProfileKeys(kv map[string]string) error
	DeleteProfileKey(key string) error
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultTTL is how long settings are served from cache.
const DefaultTTL = 60 * time.Second

// Manager provides cached, structured access to the voice settings stored
// in SQLite.
type Manager struct {
	store SettingsStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Settings
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store SettingsStore) *Manager {
	return NewManagerWithClock(store, realClock{}, DefaultTTL)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store SettingsStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GetSettings returns the stored settings, falling back to defaults for
// any key that is absent or malformed.
func (m *Manager) GetSettings() (Settings, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.fresh() {
		s := *m.cached
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.fresh() {
		return *m.cached, nil
	}
	return m.loadLocked()
}

// Update applies p atomically and invalidates the cache. It returns the
// settings as stored after the update.
func (m *Manager) Update(p Patch) (Settings, error) {
	if err := p.validate(); err != nil {
		return Settings{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kv := make(map[string]string)
	if p.CommunicationStyle != nil {
		kv[keyCommunicationStyle] = p.CommunicationStyle.String()
	}
	if p.ContentFormat != nil {
		kv[keyContentFormat] = p.ContentFormat.String()
	}
	if p.Generation != nil {
		kv[keyGeneration] = p.Generation.String()
	}
	if p.Length != nil {
		kv[keyLength] = p.Length.String()
	}
	if p.ToneSlider != nil {
		kv[keyToneSlider] = strconv.Itoa(clampSlider(*p.ToneSlider))
	}
	if p.UltraDirect != nil {
		kv[keyUltraDirect] = strconv.FormatBool(*p.UltraDirect)
	}
	if p.ReferenceID != nil && !p.ClearReference {
		kv[keyReferenceID] = *p.ReferenceID
	}

	if len(kv) > 0 {
		if err := m.store.SetProfileKeys(kv); err != nil {
			return Settings{}, fmt.Errorf("updating voice settings: %w", err)
		}
	}
	if p.ClearReference {
		if err := m.store.DeleteProfileKey(keyReferenceID); err != nil {
			return Settings{}, fmt.Errorf("clearing reference: %w", err)
		}
	}

	m.cached = nil
	return m.loadLocked()
}

// Invalidate drops the cached settings.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

func (m *Manager) fresh() bool {
	return m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl))
}

func (m *Manager) loadLocked() (Settings, error) {
	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Settings{}, fmt.Errorf("loading voice settings: %w", err)
	}

	s := buildSettings(keys)
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return s, nil
}

// buildSettings assembles Settings from flat key-value pairs.
func buildSettings(keys map[string]string) Settings {
	s := DefaultSettings()

	decodeKey(keys, keyCommunicationStyle, s.CommunicationStyle.UnmarshalText)
	decodeKey(keys, keyContentFormat, s.ContentFormat.UnmarshalText)
	decodeKey(keys, keyGeneration, s.Generation.UnmarshalText)
	decodeKey(keys, keyLength, s.Length.UnmarshalText)
	decodeKey(keys, keyToneSlider, func(b []byte) error {
		n, err := strconv.Atoi(string(b))
		if err != nil {
			return err
		}
		s.ToneSlider = clampSlider(n)
		return nil
	})
	decodeKey(keys, keyUltraDirect, func(b []byte) error {
		v, err := strconv.ParseBool(string(b))
		if err != nil {
			return err
		}
		s.UltraDirect = v
		return nil
	})
	s.ReferenceID = keys[keyReferenceID]

	s.ToneFlair = s.Profile("").ToneFlair
	return s
}

// decodeKey applies decode to the stored value for key, logging a warning
// and leaving the default in place if the value is malformed.
func decodeKey(keys map[string]string, key string, decode func([]byte) error) {
	v, ok := keys[key]
	if !ok {
		return
	}
	if err := decode([]byte(v)); err != nil {
		slog.Warn("malformed voice setting, using default", "key", key, "error", err)
	}
}
