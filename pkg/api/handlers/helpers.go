package handlers

import (
	"encoding/json"
	"time"

	"explora/pkg/models"
	"explora/pkg/store"
	"explora/pkg/thread"
)

// loadConversation returns the stored conversation metadata.
func loadConversation(convID string) (models.Conversation, error) {
	var c models.Conversation
	s, err := store.GetConversation(convID)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return c, err
	}
	return c, nil
}

// loadModel rebuilds the in-memory thread model for a conversation from its
// append-only stream. Superseded versions are folded so the model sees each
// message id once, at its original position, with the latest payload.
func loadModel(convID string) (*thread.Model, error) {
	vals, err := store.ListMessages(convID)
	if err != nil {
		return nil, err
	}
	return thread.Rebuild(store.DecodeMessages(vals))
}

// touchConversation bumps the conversation's updated timestamp.
func touchConversation(convID string) {
	c, err := loadConversation(convID)
	if err != nil {
		return
	}
	c.UpdatedTS = time.Now().UTC().UnixNano()
	b, _ := json.Marshal(c)
	_ = store.SaveConversation(convID, string(b))
}
