package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Document is a named group of JSON values.
//
// Set stages a value in memory; Get sees staged values before persisted
// ones; Save writes every staged key in one transaction. Other documents
// and other processes see nothing until Save commits.
//
// Thread-safety: All methods are safe for concurrent use.
type Document struct {
	db   *sql.DB
	name string

	mu     sync.Mutex
	staged map[string][]byte
}

// Name returns the document name.
func (d *Document) Name() string {
	return d.name
}

// Get decodes the value stored under key into dst.
// Returns false with no error when the key has never been saved or staged.
func (d *Document) Get(ctx context.Context, key string, dst any) (bool, error) {
	d.mu.Lock()
	raw, ok := d.staged[key]
	d.mu.Unlock()

	if !ok {
		var text string
		err := d.db.QueryRowContext(ctx,
			`SELECT value FROM documents WHERE document = ? AND key = ?`,
			d.name, key,
		).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read %s/%s: %w", d.name, key, err)
		}
		raw = []byte(text)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", d.name, key, err)
	}
	return true, nil
}

// Set stages v under key. Nothing is written until Save.
func (d *Document) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", d.name, key, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged[key] = raw
	return nil
}

// Save flushes staged keys in a single transaction. On failure the staged
// values are kept so Save can be retried.
func (d *Document) Save(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.staged) == 0 {
		return nil
	}

	// Sorted for deterministic write order.
	keys := make([]string, 0, len(d.staged))
	for k := range d.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", d.name, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, key := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (document, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(document, key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, d.name, key, string(d.staged[key]), now)
		if err != nil {
			return fmt.Errorf("save %s/%s: %w", d.name, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", d.name, err)
	}
	d.staged = make(map[string][]byte)
	return nil
}
