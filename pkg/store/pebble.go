package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"explora/pkg/logger"
	"explora/pkg/models"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq provides a small counter to reduce key collisions when multiple
// messages share the same nanosecond timestamp.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", zap.String("path", path))
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// SaveMessage appends a message record to its conversation stream under a
// sortable timestamp key and indexes it under the message id so pin,
// confidence and other edits accumulate as versions. Records are never
// rewritten in place.
func SaveMessage(convID string, msg models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	// Key format: conv:<convID>:msg:<unix_nano_padded>-<seq>
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, s)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", zap.String("conversation", convID), zap.String("key", key), zap.Error(err))
		return err
	}
	logger.Info("message_saved", zap.String("conversation", convID), zap.String("key", key), zap.String("msg_id", msg.ID))

	if msg.ID != "" {
		idxKey := fmt.Sprintf("version:msg:%s:%020d-%06d", msg.ID, ts, s)
		if err := db.Set([]byte(idxKey), data, pebble.Sync); err != nil {
			logger.Error("save_message_index_failed", zap.String("idxKey", idxKey), zap.Error(err))
			return err
		}
	}
	return nil
}

// ListMessages returns all message records for a conversation in insertion
// order, including superseded versions; callers fold versions as needed.
func ListMessages(convID string, limit ...int) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	max := -1
	if len(limit) > 0 {
		max = limit[0]
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, iter.Error()
}

// ListMessageVersions returns all stored versions for a given message ID in
// chronological order.
func ListMessageVersions(msgID string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("version:msg:" + msgID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		v := append([]byte(nil), iter.Value()...)
		out = append(out, string(v))
	}
	return out, iter.Error()
}

// GetLatestMessage returns the latest version for a message ID or an error
// if none found.
func GetLatestMessage(msgID string) (string, error) {
	vers, err := ListMessageVersions(msgID)
	if err != nil {
		return "", err
	}
	if len(vers) == 0 {
		return "", fmt.Errorf("message not found: %s", msgID)
	}
	return vers[len(vers)-1], nil
}

// SaveConversation stores conversation metadata under a reserved key.
func SaveConversation(convID, data string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("conv:" + convID + ":meta")
	if err := db.Set(key, []byte(data), pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", zap.String("conversation", convID), zap.Error(err))
		return err
	}
	logger.Info("conversation_saved", zap.String("conversation", convID))
	return nil
}

// GetConversation returns the stored metadata JSON for a conversation ID.
func GetConversation(convID string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	key := []byte("conv:" + convID + ":meta")
	v, closer, err := db.Get(key)
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// ListConversations returns all saved conversation metadata values.
func ListConversations() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		k := iter.Key()
		if bytes.HasSuffix(k, []byte(":meta")) {
			v := append([]byte(nil), iter.Value()...)
			out = append(out, string(v))
		}
	}
	return out, iter.Error()
}

// ArchiveConversation marks the conversation as archived and appends a
// system notice to its stream so exported guides record the sweep.
func ArchiveConversation(convID string, ts int64) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	s, err := GetConversation(convID)
	if err != nil {
		logger.Error("archive_load_failed", zap.String("conversation", convID), zap.Error(err))
		return err
	}
	var c models.Conversation
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		logger.Error("archive_unmarshal_failed", zap.String("conversation", convID), zap.Error(err))
		return err
	}
	if c.Archived {
		return nil
	}
	c.Archived = true
	c.ArchivedTS = ts
	nb, _ := json.Marshal(c)
	if err := SaveConversation(convID, string(nb)); err != nil {
		return err
	}
	logger.Info("conversation_archived", zap.String("conversation", convID))
	return nil
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			k := append([]byte(nil), iter.Key()...)
			out = append(out, string(k))
		}
		return out, iter.Error()
	}
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		out = append(out, string(k))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer.Close()
	}
	return string(v), nil
}

// DecodeMessages unmarshals a stored record list, skipping records that no
// longer parse.
func DecodeMessages(vals []string) []models.Message {
	out := make([]models.Message, 0, len(vals))
	for _, s := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}
