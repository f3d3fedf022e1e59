package layer

import (
	"fmt"
	"sort"
	"sync"
)

// Manager manages configuration layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer       // Sorted by priority (ascending)
	merged map[string]any // Cached merged result
	dirty  bool           // Whether merged cache needs refresh
}

// NewManager creates a new layer manager.
func NewManager() *Manager {
	return &Manager{
		layers: make([]*Layer, 0),
		merged: make(map[string]any),
		dirty:  true,
	}
}

// Add adds a layer to the manager.
// Layers are automatically sorted by priority.
func (m *Manager) Add(l *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.layers = append(m.layers, l)
	m.sortLayers()
	m.dirty = true
}

// Remove removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.dirty = true
			return true
		}
	}
	return false
}

// Get returns a layer by name.
func (m *Manager) Get(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// Count returns the number of layers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.layers)
}

// Merge combines all layers into a single configuration map.
// The result is cached until a layer is added, removed, or replaced.
// The returned map is a deep copy safe for the caller to hold.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dirty || m.merged == nil {
		result := make(map[string]any)
		for _, l := range m.layers {
			result = DeepMerge(result, l.Data)
		}
		m.merged = result
		m.dirty = false
	}

	return CloneMap(m.merged)
}

// Replace swaps a layer's data entirely.
// Returns an error if the layer is not found.
func (m *Manager) Replace(name string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.findLayer(name)
	if l == nil {
		return fmt.Errorf("layer not found: %s", name)
	}

	l.Data = CloneMap(data)
	m.dirty = true
	return nil
}

// WhichLayer returns the name of the highest-priority layer providing
// a value for key, or the empty string if no layer holds it.
func (m *Manager) WhichLayer(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		if _, ok := m.layers[i].Data[key]; ok {
			return m.layers[i].Name
		}
	}
	return ""
}

// Invalidate marks the merged cache as dirty.
// Call this after modifying layer data directly.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
}

// Clear removes all layers and releases memory.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.layers = nil
	m.merged = nil
	m.dirty = true
}

// sortLayers sorts layers by priority (ascending).
func (m *Manager) sortLayers() {
	sort.Slice(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

// findLayer finds a layer by name (must be called with lock held).
func (m *Manager) findLayer(name string) *Layer {
	for _, l := range m.layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}
