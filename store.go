// store.go: SQLite-backed installation registry and scoped extension storage
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"database/sql"
	"encoding/json"

	"github.com/agilira/go-timecache"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// Store persists the installation registry and the per-extension
// key-value storage. All mutations go through a single mutex-free
// *sql.DB; SQLite serializes writers itself and the manager already
// serializes registry mutations per extension.
type Store struct {
	db     *sql.DB
	logger Logger
}

// OpenStore opens (or creates) the registry database at the given path.
func OpenStore(path string, logger Logger) (*Store, error) {
	if logger == nil {
		logger = DefaultLogger()
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, NewRegistryStoreError("open failed", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	if err := store.initTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initTables creates the schema when it does not exist yet.
func (s *Store) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS installed_extensions (
			id TEXT PRIMARY KEY,
			manifest TEXT NOT NULL,
			install_path TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			installed_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extension_storage (
			extension_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (extension_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_storage_extension ON extension_storage(extension_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return NewRegistryStoreError("schema initialization failed", err)
		}
	}
	return nil
}

// SaveRecord inserts or replaces an installation record.
func (s *Store) SaveRecord(rec *InstalledExtension) error {
	manifest, err := json.Marshal(rec.Manifest)
	if err != nil {
		return NewRegistryStoreError("manifest serialization failed", err)
	}

	now := timecache.CachedTime()
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO installed_extensions (id, manifest, install_path, enabled, installed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			manifest = excluded.manifest,
			install_path = excluded.install_path,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		rec.ID, string(manifest), rec.InstallPath, boolToInt(rec.Enabled), rec.InstalledAt, rec.UpdatedAt)
	if err != nil {
		return NewRegistryStoreError("save failed for "+rec.ID, err)
	}
	return nil
}

// GetRecord fetches one installation record by extension identifier.
func (s *Store) GetRecord(id string) (*InstalledExtension, error) {
	row := s.db.QueryRow(`
		SELECT id, manifest, install_path, enabled, installed_at, updated_at
		FROM installed_extensions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, NewExtensionNotFoundError(id)
	}
	if err != nil {
		return nil, NewRegistryStoreError("lookup failed for "+id, err)
	}
	return rec, nil
}

// ListRecords returns all installation records ordered by identifier.
func (s *Store) ListRecords() ([]*InstalledExtension, error) {
	rows, err := s.db.Query(`
		SELECT id, manifest, install_path, enabled, installed_at, updated_at
		FROM installed_extensions ORDER BY id`)
	if err != nil {
		return nil, NewRegistryStoreError("list failed", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*InstalledExtension
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, NewRegistryStoreError("row scan failed", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewRegistryStoreError("row iteration failed", err)
	}
	return records, nil
}

// SetEnabled flips the enabled flag on an installation record.
func (s *Store) SetEnabled(id string, enabled bool) error {
	result, err := s.db.Exec(`
		UPDATE installed_extensions SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), timecache.CachedTime(), id)
	if err != nil {
		return NewRegistryStoreError("enable update failed for "+id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return NewExtensionNotFoundError(id)
	}
	return nil
}

// DeleteRecord removes an installation record and the extension's scoped
// storage in one transaction.
func (s *Store) DeleteRecord(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return NewRegistryStoreError("transaction begin failed", err)
	}

	if _, err := tx.Exec(`DELETE FROM extension_storage WHERE extension_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return NewRegistryStoreError("storage cleanup failed for "+id, err)
	}
	if _, err := tx.Exec(`DELETE FROM installed_extensions WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return NewRegistryStoreError("delete failed for "+id, err)
	}

	if err := tx.Commit(); err != nil {
		return NewRegistryStoreError("transaction commit failed", err)
	}
	return nil
}

// StorageGet reads one value from an extension's scoped storage.
func (s *Store) StorageGet(extensionID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT value FROM extension_storage WHERE extension_id = ? AND key = ?`,
		extensionID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, NewScopedStorageError(extensionID, err)
	}
	return value, true, nil
}

// StorageSet writes one value into an extension's scoped storage.
func (s *Store) StorageSet(extensionID, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO extension_storage (extension_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(extension_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		extensionID, key, value, timecache.CachedTime())
	if err != nil {
		return NewScopedStorageError(extensionID, err)
	}
	return nil
}

// StorageDelete removes one key from an extension's scoped storage.
func (s *Store) StorageDelete(extensionID, key string) error {
	_, err := s.db.Exec(`
		DELETE FROM extension_storage WHERE extension_id = ? AND key = ?`,
		extensionID, key)
	if err != nil {
		return NewScopedStorageError(extensionID, err)
	}
	return nil
}

// StorageKeys lists the keys in an extension's scoped storage.
func (s *Store) StorageKeys(extensionID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT key FROM extension_storage WHERE extension_id = ? ORDER BY key`,
		extensionID)
	if err != nil {
		return nil, NewScopedStorageError(extensionID, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, NewScopedStorageError(extensionID, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, NewScopedStorageError(extensionID, err)
	}
	return keys, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*InstalledExtension, error) {
	var rec InstalledExtension
	var manifest string
	var enabled int

	if err := row.Scan(&rec.ID, &manifest, &rec.InstallPath, &enabled,
		&rec.InstalledAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(manifest), &rec.Manifest); err != nil {
		return nil, err
	}
	rec.Enabled = enabled != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
