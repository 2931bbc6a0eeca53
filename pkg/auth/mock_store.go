package auth

import "sync"

// MockStore implements CredentialStore in memory, for testing
type MockStore struct {
	mu          sync.RWMutex
	credentials map[string]*Credential
	failStore   bool
	failDelete  bool
}

// NewMockStore creates a new in-memory credential store
func NewMockStore() *MockStore {
	return &MockStore{
		credentials: make(map[string]*Credential),
	}
}

// SetFailStore makes Store return ErrStoreUnavailable
func (m *MockStore) SetFailStore(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStore = fail
}

// SetFailDelete makes Delete return ErrStoreUnavailable
func (m *MockStore) SetFailDelete(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete = fail
}

// Store saves a credential in memory
func (m *MockStore) Store(cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failStore {
		return ErrStoreUnavailable
	}
	if cred == nil || cred.Label == "" {
		return ErrInvalidCredential
	}

	c := *cred
	m.credentials[cred.Label] = &c
	return nil
}

// Retrieve gets a credential from memory
func (m *MockStore) Retrieve(label string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if label == "" {
		return nil, ErrInvalidCredential
	}

	cred, ok := m.credentials[label]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	c := *cred
	return &c, nil
}

// List returns all stored credentials
func (m *MockStore) List() ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*Credential
	for _, cred := range m.credentials {
		c := *cred
		creds = append(creds, &c)
	}
	return creds, nil
}

// Delete removes a credential from memory
func (m *MockStore) Delete(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDelete {
		return ErrStoreUnavailable
	}
	if label == "" {
		return ErrInvalidCredential
	}
	if _, ok := m.credentials[label]; !ok {
		return ErrCredentialNotFound
	}

	delete(m.credentials, label)
	return nil
}

// Exists checks if a credential exists in memory
func (m *MockStore) Exists(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.credentials[label]
	return ok
}
