package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/travelerpub/internal/domain/port/driven"
)

// testKey is a fixed 32-byte AES-256 key.
var testKey = bytes.Repeat([]byte{0x42}, 32)

func TestCredentialRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	err := repo.Set(ctx, "arcgis", "password", "hunter2")
	require.NoError(t, err)

	val, err := repo.Get(ctx, "arcgis", "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", val)
}

func TestCredentialRepo_StoredEncrypted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "arcgis", "password", "hunter2"))

	var raw string
	err := db.Reader.QueryRowContext(ctx, `SELECT value FROM credentials WHERE service = ? AND key_name = ?`, "arcgis", "password").Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "hunter2")
	assert.NotEmpty(t, raw)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	val, err := repo.Get(ctx, "arcgis", "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestCredentialRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	err := repo.Set(ctx, "arcgis", "password", "old-value")
	require.NoError(t, err)

	err = repo.Set(ctx, "arcgis", "password", "new-value")
	require.NoError(t, err)

	val, err := repo.Get(ctx, "arcgis", "password")
	require.NoError(t, err)
	assert.Equal(t, "new-value", val)

	creds, err := repo.List(ctx, "arcgis")
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestCredentialRepo_GetAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "arcgis", "password", "hunter2"))
	require.NoError(t, repo.Set(ctx, "arcgis", "username", "testuser"))
	require.NoError(t, repo.Set(ctx, "wsdot", "access_code", "abc"))

	creds, err := repo.GetAll(ctx, "arcgis")
	require.NoError(t, err)
	assert.Len(t, creds, 2)
	assert.Equal(t, "hunter2", creds["password"])
	assert.Equal(t, "testuser", creds["username"])
}

func TestCredentialRepo_GetAllEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	creds, err := repo.GetAll(ctx, "arcgis")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "arcgis", "username", "testuser"))
	require.NoError(t, repo.Set(ctx, "arcgis", "password", "hunter2"))

	creds, err := repo.List(ctx, "arcgis")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "password", creds[0].Key)
	assert.Equal(t, "username", creds[1].Key)
	assert.Equal(t, "testuser", creds[1].Value)
	assert.False(t, creds[0].UpdatedAt.IsZero())
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "arcgis", "username", "testuser"))
	require.NoError(t, repo.Set(ctx, "arcgis", "password", "hunter2"))

	require.NoError(t, repo.Delete(ctx, "arcgis", "password"))

	val, err := repo.Get(ctx, "arcgis", "password")
	require.NoError(t, err)
	assert.Empty(t, val)

	val, err = repo.Get(ctx, "arcgis", "username")
	require.NoError(t, err)
	assert.Equal(t, "testuser", val)
}

func TestCredentialRepo_DeleteMissingIsNoError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)

	require.NoError(t, repo.Delete(context.Background(), "arcgis", "nonexistent"))
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Set(ctx, "arcgis", "password", "hunter2")
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "arcgis", "password")
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.GetAll(ctx, "arcgis")
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_WrongKeyFailsToDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey).Set(ctx, "arcgis", "password", "hunter2"))

	other := NewCredentialRepo(db, bytes.Repeat([]byte{0x24}, 32))
	_, err := other.Get(ctx, "arcgis", "password")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrypt credential")
}
