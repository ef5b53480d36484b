package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// Stored portal credentials live under this service with these keys.
const (
	CredentialService     = "arcgis"
	CredentialKeyUsername = "username"
	CredentialKeyPassword = "password"
)

// ErrCredentialsMissing is returned when no username or password is known for
// the portal.
var ErrCredentialsMissing = errors.New("portal credentials missing: set TRAVELERPUB_ARCGIS_USERNAME and TRAVELERPUB_ARCGIS_PASSWORD, a login file, or stored credentials")

// ResolveCredential merges stored credentials over base. A stored value wins
// over the configured one; store may be nil, and a store without an encryption
// key is treated as empty.
func ResolveCredential(ctx context.Context, store driven.CredentialStore, base model.Credential) (model.Credential, error) {
	cred := base

	if store != nil {
		stored, err := store.GetAll(ctx, CredentialService)
		switch {
		case errors.Is(err, driven.ErrEncryptionKeyNotSet):
			slog.Debug("credential store disabled, using configured credentials")
		case err != nil:
			return model.Credential{}, fmt.Errorf("load stored credentials: %w", err)
		default:
			if v := stored[CredentialKeyUsername]; v != "" {
				cred.Username = v
			}
			if v := stored[CredentialKeyPassword]; v != "" {
				cred.Password = v
			}
		}
	}

	if !cred.HasLogin() {
		return model.Credential{}, ErrCredentialsMissing
	}
	return cred, nil
}

// SaveCredential stores the portal login, replacing any stored values.
func SaveCredential(ctx context.Context, store driven.CredentialStore, username, password string) error {
	if username == "" || password == "" {
		return ErrCredentialsMissing
	}
	if err := store.Set(ctx, CredentialService, CredentialKeyUsername, username); err != nil {
		return fmt.Errorf("store username: %w", err)
	}
	if err := store.Set(ctx, CredentialService, CredentialKeyPassword, password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	slog.Info("portal credentials stored", "username", username)
	return nil
}

// ClearCredential removes the stored portal login.
func ClearCredential(ctx context.Context, store driven.CredentialStore) error {
	for _, key := range []string{CredentialKeyUsername, CredentialKeyPassword} {
		if err := store.Delete(ctx, CredentialService, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	slog.Info("portal credentials cleared")
	return nil
}
