package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/skysense/internal/config"
	apperrors "github.com/gmsas95/skysense/internal/errors"
)

// Local keys. Values are plain strings.
const (
	KeyDarkMode           = "skysense_dark_mode"
	KeyProfileID          = "skysense_profile_id"
	KeyOnboardingComplete = "skysense_onboarding_complete"
	KeyLastSync           = "skysense_last_sync"
	KeyProfile            = "skysense_profile"
	KeySettings           = "skysense_settings"
)

// KV is the string-keyed, string-valued local state surface. Writes to
// distinct keys are independent.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Options controls where the store keeps its data
type Options struct {
	SQLitePath string
	BadgerPath string
	InMemory   bool
}

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	badger *badger.DB
}

// New creates a new Store from configuration
func New(cfg *config.Config) (*Store, error) {
	opts := Options{
		SQLitePath: cfg.Storage.SQLitePath,
		BadgerPath: cfg.Storage.BadgerPath,
	}
	if opts.SQLitePath == "" {
		opts.SQLitePath = filepath.Join(cfg.Storage.DataDir, "skysense.db")
	}
	if opts.BadgerPath == "" {
		opts.BadgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}
	return Open(opts)
}

// NewInMemory creates a Store that keeps nothing on disk
func NewInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// Open opens both databases
func Open(opts Options) (*Store, error) {
	dsn := opts.SQLitePath + "?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000"
	if opts.InMemory {
		dsn = ":memory:"
	}

	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if opts.InMemory {
		// every connection to :memory: is a separate database
		sqliteDB.SetMaxOpenConns(1)
	} else {
		sqliteDB.SetMaxOpenConns(10)
		sqliteDB.SetMaxIdleConns(5)
		sqliteDB.SetConnMaxLifetime(time.Hour)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.BadgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{
		db:     db,
		badger: badgerDB,
	}, nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	errs = append(errs, s.badger.Close())
	return errors.Join(errs...)
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ==================== KV Methods (BadgerDB) ====================

// Get returns the value stored under key and whether it exists
func (s *Store) Get(key string) (string, bool, error) {
	var val string
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("kv:" + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = string(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.WrapAs(apperrors.ErrStoreRead, err)
	}
	return val, true, nil
}

// Set stores value under key
func (s *Store) Set(key, value string) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("kv:"+key), []byte(value))
	})
	if err != nil {
		return apperrors.WrapAs(apperrors.ErrStoreWrite, err)
	}
	return nil
}

// Delete removes key
func (s *Store) Delete(key string) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte("kv:" + key))
	})
	if err != nil {
		return apperrors.WrapAs(apperrors.ErrStoreWrite, err)
	}
	return nil
}

// SetJSON stores v as JSON under key
func SetJSON(kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return kv.Set(key, string(data))
}

// GetJSON decodes the JSON stored under key into v
func GetJSON(kv KV, key string, v any) (bool, error) {
	raw, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, apperrors.WrapAs(apperrors.ErrStoreRead, fmt.Errorf("decode %s: %w", key, err))
	}
	return true, nil
}

// GetBool reads a "true"/"false" flag. Missing keys report ok=false.
func GetBool(kv KV, key string) (value, ok bool, err error) {
	raw, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, ok, err
	}
	return raw == "true", true, nil
}

// SetBool writes a flag as "true"/"false"
func SetBool(kv KV, key string, value bool) error {
	if value {
		return kv.Set(key, "true")
	}
	return kv.Set(key, "false")
}
