// Package cache provides the TTL key-value store shared by the detection and
// nutrition layers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// BadgerCache stores entries in badger using native TTL support.
type BadgerCache struct {
	db *badger.DB
}

// Open opens a badger cache at dir. An empty dir keeps everything in memory.
func Open(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// NewBadgerCache wraps an existing badger handle.
func NewBadgerCache(db *badger.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, true, nil
}

func (c *BadgerCache) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Close releases the badger handle.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// GetJSON decodes a cached JSON value into dst. A value that no longer
// decodes is reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.SetWithExpiry(ctx, key, raw, ttl)
}
