// Package store persists the application's collections. Each collection is
// one JSON document mapping a key to a record and is always read and written
// as a whole.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"obra-rdo/internal/config"
	"obra-rdo/internal/logger"
)

// ErrNotExist is returned by a Backend when a collection was never written.
var ErrNotExist = errors.New("collection does not exist")

type Backend interface {
	Read(ctx context.Context, collection string) ([]byte, error)
	Write(ctx context.Context, collection string, data []byte) error
}

// OpenBackend builds the backend selected by cfg.Storage.Driver.
func OpenBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Driver {
	case "", "file":
		return NewFileBackend(cfg.Storage.DataDir)
	case "mysql", "sqlite":
		db, err := cfg.OpenGormDB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Storage.Driver, err)
		}
		return NewGormBackend(db)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Collection is a typed view over one stored document.
type Collection[T any] struct {
	name    string
	backend Backend
	mu      sync.Mutex
}

func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{name: name, backend: backend}
}

func (c *Collection[T]) Name() string { return c.name }

// Load returns the readable records of the collection. A missing document, or
// one that is not a JSON object, reads as empty. Records that do not decode
// into T are left out with a warning; Update writes them back as stored.
func (c *Collection[T]) Load(ctx context.Context) (map[string]T, error) {
	doc, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.items, nil
}

// LoadAll is Load plus the raw records that did not decode.
func (c *Collection[T]) LoadAll(ctx context.Context) (map[string]T, map[string]json.RawMessage, error) {
	doc, err := c.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return doc.items, doc.unreadable, nil
}

// snapshot is a decoded collection plus what could not be decoded.
type snapshot[T any] struct {
	items      map[string]T
	unreadable map[string]json.RawMessage
	corrupt    []byte // the whole stored document when it is not a JSON object
}

func (c *Collection[T]) load(ctx context.Context) (snapshot[T], error) {
	doc := snapshot[T]{items: map[string]T{}, unreadable: map[string]json.RawMessage{}}
	data, err := c.backend.Read(ctx, c.name)
	if errors.Is(err, ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", c.name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("store.corrupt", "collection", c.name, "err", err)
		doc.corrupt = data
		return doc, nil
	}
	for key, msg := range raw {
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			logger.Warn("store.unreadable_record", "collection", c.name, "key", key, "err", err)
			doc.unreadable[key] = msg
			continue
		}
		doc.items[key] = v
	}
	return doc, nil
}

// Save overwrites the stored document with items.
func (c *Collection[T]) Save(ctx context.Context, items map[string]T) error {
	return c.save(ctx, items, nil)
}

func (c *Collection[T]) save(ctx context.Context, items map[string]T, unreadable map[string]json.RawMessage) error {
	out := make(map[string]any, len(items)+len(unreadable))
	for key, msg := range unreadable {
		out[key] = msg
	}
	for key, v := range items {
		out[key] = v
	}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	if err := c.backend.Write(ctx, c.name, data); err != nil {
		return fmt.Errorf("write %s: %w", c.name, err)
	}
	return nil
}

// Update runs fn on the current contents and saves the result unless fn fails.
// Updates on the same Collection are serialized. Records that Load skipped are
// saved back unchanged, and a document that was not a JSON object is copied
// to "<name>.corrupt-<timestamp>" before it is replaced.
func (c *Collection[T]) Update(ctx context.Context, fn func(items map[string]T) error) error {
	return c.UpdateAll(ctx, func(items map[string]T, _ map[string]json.RawMessage) error {
		return fn(items)
	})
}

// UpdateAll is Update with the undecoded records exposed. Entries deleted from
// unreadable are dropped from the document.
func (c *Collection[T]) UpdateAll(ctx context.Context, fn func(items map[string]T, unreadable map[string]json.RawMessage) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc.items, doc.unreadable); err != nil {
		return err
	}
	if doc.corrupt != nil {
		backup := c.name + ".corrupt-" + time.Now().Format("20060102150405")
		if err := c.backend.Write(ctx, backup, doc.corrupt); err != nil {
			return fmt.Errorf("back up %s: %w", c.name, err)
		}
		logger.Warn("store.corrupt_backup", "collection", c.name, "backup", backup)
	}
	return c.save(ctx, doc.items, doc.unreadable)
}

func (c *Collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	items, err := c.Load(ctx)
	if err != nil {
		return zero, false, err
	}
	v, ok := items[key]
	return v, ok, nil
}

func (c *Collection[T]) Put(ctx context.Context, key string, v T) error {
	return c.Update(ctx, func(items map[string]T) error {
		items[key] = v
		return nil
	})
}

// Delete removes key and reports whether it was present. Unreadable records
// can be deleted too.
func (c *Collection[T]) Delete(ctx context.Context, key string) (bool, error) {
	found := false
	err := c.UpdateAll(ctx, func(items map[string]T, unreadable map[string]json.RawMessage) error {
		_, inItems := items[key]
		_, inRaw := unreadable[key]
		found = inItems || inRaw
		delete(items, key)
		delete(unreadable, key)
		return nil
	})
	return found, err
}
