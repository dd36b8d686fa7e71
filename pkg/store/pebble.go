package store

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/pebble"

	"chatledger/pkg/logger"
)

// KV is a durable key -> JSON-value store on top of Pebble. Operations
// are total: failures are logged and degrade to a false/zero result so
// callers never handle storage errors inline. Each logical key prefix is
// owned by exactly one component (balance keys by the ledger, chat keys
// by the chat store, the wallet address key by the wallet registry).
type KV struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*KV, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &KV{db: db, path: path}, nil
}

// Close closes the underlying database.
func (k *KV) Close() error {
	if k.db == nil {
		return nil
	}
	if err := k.db.Close(); err != nil {
		return err
	}
	k.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (k *KV) Ready() bool {
	return k != nil && k.db != nil
}

// Put serializes v as JSON and stores it under key. Returns false on
// serialization or write failure, leaving any prior value untouched.
func (k *KV) Put(key string, v any) bool {
	if !k.Ready() {
		logger.Error("put_on_closed_store", "key", key)
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("put_marshal_failed", "key", key, "error", err)
		return false
	}
	if err := k.db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("put_failed", "key", key, "error", err)
		return false
	}
	logger.Debug("put_ok", "key", key, "len", len(data))
	return true
}

// Get deserializes the value stored under key into out. Returns false
// when the key is missing or the stored data does not decode; out is
// left as the caller's default then.
func (k *KV) Get(key string, out any) bool {
	if !k.Ready() {
		logger.Error("get_on_closed_store", "key", key)
		return false
	}
	v, closer, err := k.db.Get([]byte(key))
	if err != nil {
		if err != pebble.ErrNotFound {
			logger.Error("get_failed", "key", key, "error", err)
		}
		return false
	}
	data := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Error("get_corrupt_value", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key. Missing keys are a no-op.
func (k *KV) Delete(key string) {
	if !k.Ready() {
		return
	}
	if err := k.db.Delete([]byte(key), pebble.Sync); err != nil {
		logger.Error("delete_failed", "key", key, "error", err)
	}
}

// Exists reports whether key has a stored value.
func (k *KV) Exists(key string) bool {
	if !k.Ready() {
		return false
	}
	_, closer, err := k.db.Get([]byte(key))
	if err != nil {
		return false
	}
	if closer != nil {
		_ = closer.Close()
	}
	return true
}

// Keys returns all keys starting with prefix, in lexical order. An
// empty prefix returns every key.
func (k *KV) Keys(prefix string) []string {
	if !k.Ready() {
		return nil
	}
	iter, err := k.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		logger.Error("keys_iter_failed", "prefix", prefix, "error", err)
		return nil
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	if err := iter.Error(); err != nil {
		logger.Error("keys_iter_error", "prefix", prefix, "error", err)
	}
	return out
}

// Clear deletes every stored key. Used by tests and explicit resets.
func (k *KV) Clear() {
	for _, key := range k.Keys("") {
		k.Delete(key)
	}
}
