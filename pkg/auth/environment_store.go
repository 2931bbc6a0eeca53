package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// This is primarily for env-only deployments (containers, CI).
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// envAPIKey reads the API key from the environment, preferring the
// prefixed variable over the generic one
func envAPIKey() string {
	if key := os.Getenv("RFHARVEST_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("ROBOFLOW_API_KEY")
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the credential from environment variables
func (e *EnvironmentStore) Retrieve(label string) (*Credential, error) {
	key := envAPIKey()
	if key == "" {
		return nil, ErrCredentialNotFound
	}

	if label == "" {
		label = DefaultLabel
	}

	return &Credential{
		Label:        label,
		APIKey:       key,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if environment variables are set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultLabel)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential exists
func (e *EnvironmentStore) Exists(label string) bool {
	return envAPIKey() != ""
}
