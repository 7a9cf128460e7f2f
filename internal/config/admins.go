package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// AdminCredential is one bootstrap admin account from the credential file.
type AdminCredential struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AdminStore holds bootstrap admin credentials loaded from an external
// JSON file. Admin accounts are never compiled into the binary.
type AdminStore struct {
	creds map[string]AdminCredential
}

// LoadAdminStore reads the credential file keyed by admin username. An
// empty path yields an empty store: no bootstrap admins, not an error.
func LoadAdminStore(path string) (*AdminStore, error) {
	store := &AdminStore{creds: map[string]AdminCredential{}}
	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read admin credentials: %w", err)
	}
	if err := json.Unmarshal(data, &store.creds); err != nil {
		return nil, fmt.Errorf("parse admin credentials: %w", err)
	}
	return store, nil
}

// Lookup returns the credential for a bootstrap admin username.
func (s *AdminStore) Lookup(username string) (AdminCredential, bool) {
	cred, ok := s.creds[username]
	return cred, ok
}
