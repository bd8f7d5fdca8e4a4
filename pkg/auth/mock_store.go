package auth

import (
	"sync"
)

// MockStore implements CookieStore in memory for testing purposes
type MockStore struct {
	hosts map[string]*HostCookies
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock cookie store
func NewMockStore() *MockStore {
	return &MockStore{
		hosts: make(map[string]*HostCookies),
	}
}

// Store saves cookies to the mock store
func (m *MockStore) Store(c *HostCookies) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c == nil || c.Host == "" {
		return ErrInvalidCookies
	}

	// Copy to avoid external modifications
	cp := *c
	m.hosts[c.Host] = &cp
	return nil
}

// Retrieve gets cookies from the mock store
func (m *MockStore) Retrieve(host string) (*HostCookies, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if host == "" {
		return nil, ErrInvalidCookies
	}

	c, exists := m.hosts[host]
	if !exists {
		return nil, ErrCookiesNotFound
	}
	cp := *c
	return &cp, nil
}

// List returns all stored hosts from the mock store
func (m *MockStore) List() ([]*HostCookies, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*HostCookies
	for _, c := range m.hosts {
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

// Delete removes cookies from the mock store
func (m *MockStore) Delete(host string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.hosts[host]; !exists {
		return ErrCookiesNotFound
	}
	delete(m.hosts, host)
	return nil
}

// Count returns the number of hosts in the mock store
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.hosts)
}

// NewMockManager creates a Manager with a single mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
