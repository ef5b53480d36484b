package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// TRAVELERPUB_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set TRAVELERPUB_SECRET_KEY")

// CredentialStore defines the driven port for encrypted credential persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Set stores or replaces the credential identified by service and key.
	// Returns ErrEncryptionKeyNotSet if the adapter was constructed without an encryption key.
	Set(ctx context.Context, service, key, plaintext string) error

	// Get retrieves the plaintext credential. Returns ("", nil) if it does not exist.
	Get(ctx context.Context, service, key string) (string, error)

	// GetAll returns every key of the given service mapped to its plaintext value.
	GetAll(ctx context.Context, service string) (map[string]string, error)

	// Delete removes a credential. Deleting a missing credential is not an error.
	Delete(ctx context.Context, service, key string) error
}
