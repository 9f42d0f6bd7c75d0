// store_test.go: registry database tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "extensions.db"), NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(id string) *InstalledExtension {
	return &InstalledExtension{
		ID: id,
		Manifest: ExtensionManifest{
			ID:      id,
			Name:    "Sample",
			Version: "1.0.0",
			Main:    "init.lua",
			Permissions: []Permission{
				PermissionClipboard,
			},
		},
		InstallPath: "/tmp/extensions/" + id,
		Enabled:     true,
	}
}

func TestStore_SaveAndGetRecord(t *testing.T) {
	store := newTestStore(t)

	rec := sampleRecord("hello")
	require.NoError(t, store.SaveRecord(rec))
	assert.False(t, rec.InstalledAt.IsZero())
	assert.False(t, rec.UpdatedAt.IsZero())

	loaded, err := store.GetRecord("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.ID)
	assert.Equal(t, "1.0.0", loaded.Manifest.Version)
	assert.True(t, loaded.Manifest.HasPermission(PermissionClipboard))
	assert.True(t, loaded.Enabled)
}

func TestStore_GetRecordNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRecord("missing")
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeExtensionNotFound))
}

func TestStore_SaveRecordUpserts(t *testing.T) {
	store := newTestStore(t)

	rec := sampleRecord("hello")
	require.NoError(t, store.SaveRecord(rec))
	installedAt := rec.InstalledAt

	rec.Manifest.Version = "1.1.0"
	require.NoError(t, store.SaveRecord(rec))

	loaded, err := store.GetRecord("hello")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", loaded.Manifest.Version)
	assert.Equal(t, installedAt.Unix(), loaded.InstalledAt.Unix())
}

func TestStore_ListRecordsOrdered(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveRecord(sampleRecord("zeta")))
	require.NoError(t, store.SaveRecord(sampleRecord("alpha")))

	records, err := store.ListRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "zeta", records[1].ID)
}

func TestStore_SetEnabled(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveRecord(sampleRecord("hello")))

	require.NoError(t, store.SetEnabled("hello", false))
	loaded, err := store.GetRecord("hello")
	require.NoError(t, err)
	assert.False(t, loaded.Enabled)

	err = store.SetEnabled("missing", true)
	assert.True(t, HasErrorCode(err, ErrCodeExtensionNotFound))
}

func TestStore_ScopedStorage(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.StorageSet("ext-a", "token", "abc"))
	require.NoError(t, store.StorageSet("ext-a", "mode", "fast"))
	require.NoError(t, store.StorageSet("ext-b", "token", "xyz"))

	t.Run("GetReturnsOwnValue", func(t *testing.T) {
		value, ok, err := store.StorageGet("ext-a", "token")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "abc", value)
	})

	t.Run("KeysAreScopedPerExtension", func(t *testing.T) {
		keys, err := store.StorageKeys("ext-a")
		require.NoError(t, err)
		assert.Equal(t, []string{"mode", "token"}, keys)

		keys, err = store.StorageKeys("ext-b")
		require.NoError(t, err)
		assert.Equal(t, []string{"token"}, keys)
	})

	t.Run("SameKeyDifferentExtensionsIsolated", func(t *testing.T) {
		value, ok, err := store.StorageGet("ext-b", "token")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "xyz", value)
	})

	t.Run("MissingKeyReportsAbsent", func(t *testing.T) {
		_, ok, err := store.StorageGet("ext-a", "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		require.NoError(t, store.StorageSet("ext-a", "token", "def"))
		value, _, err := store.StorageGet("ext-a", "token")
		require.NoError(t, err)
		assert.Equal(t, "def", value)
	})

	t.Run("DeleteRemovesOnlyOwnKey", func(t *testing.T) {
		require.NoError(t, store.StorageDelete("ext-a", "token"))
		_, ok, err := store.StorageGet("ext-a", "token")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = store.StorageGet("ext-b", "token")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestStore_DeleteRecordClearsStorage(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveRecord(sampleRecord("hello")))
	require.NoError(t, store.StorageSet("hello", "token", "abc"))

	require.NoError(t, store.DeleteRecord("hello"))

	_, err := store.GetRecord("hello")
	assert.True(t, HasErrorCode(err, ErrCodeExtensionNotFound))

	keys, err := store.StorageKeys("hello")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extensions.db")

	store, err := OpenStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRecord(sampleRecord("hello")))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.GetRecord("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.ID)
}
