package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Manager maps provider tags to their clients.
type Manager struct {
	mu      sync.RWMutex
	clients map[Provider]Client
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{clients: make(map[Provider]Client)}
}

// Register adds a client. A provider can be registered once.
func (m *Manager) Register(client Client) error {
	if client == nil {
		return fmt.Errorf("client cannot be nil")
	}
	name := client.Name()
	if name == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.clients[name]; exists {
		return fmt.Errorf("client already registered: %s", name)
	}
	m.clients[name] = client
	return nil
}

// Get returns the client for a provider.
func (m *Manager) Get(name Provider) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[name]
	return client, ok
}

// Providers returns the registered provider tags in sorted order.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]Provider, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
