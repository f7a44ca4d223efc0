// Package thread owns the in-memory conversation threading model: an
// append-only ordered collection of messages plus the grouping pass that
// turns it into a renderable main thread with nested replies.
package thread

import (
	"errors"
	"fmt"

	"explora/pkg/models"
)

// ErrDuplicateID is returned by Append when a message id is already present.
var ErrDuplicateID = errors.New("duplicate message id")

// ErrMalformedMessage is returned by Append when a required field is missing.
var ErrMalformedMessage = errors.New("malformed message")

// Group pairs an anchor message (no parent) with its direct replies, in
// insertion order. Derived by Model.Group; never stored.
type Group struct {
	Anchor  models.Message   `json:"anchor"`
	Replies []models.Message `json:"replies"`
}

// Model is the append-only message collection for a single conversation
// view. Instances are not safe for concurrent use; each conversation/session
// gets its own.
type Model struct {
	msgs  []models.Message
	index map[string]int // id -> position in msgs
}

// New returns an empty model.
func New() *Model {
	return &Model{index: make(map[string]int)}
}

// Append adds a fully formed message to the end of the collection. The id
// must be unique within the model; callers generate ids before appending.
// Messages are never mutated or removed after a successful Append.
func (m *Model) Append(msg models.Message) error {
	if err := checkShape(msg); err != nil {
		return err
	}
	if _, ok := m.index[msg.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	m.index[msg.ID] = len(m.msgs)
	m.msgs = append(m.msgs, msg)
	return nil
}

// Len reports the number of appended messages.
func (m *Model) Len() int { return len(m.msgs) }

// Messages returns a copy of the collection in insertion order.
func (m *Model) Messages() []models.Message {
	out := make([]models.Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Get returns the message with the given id, if present.
func (m *Model) Get(id string) (models.Message, bool) {
	i, ok := m.index[id]
	if !ok {
		return models.Message{}, false
	}
	return m.msgs[i], true
}

// Group produces one Group per anchor, in anchor-first-seen order. A single
// pass over the collection:
//   - a message with no parent starts a new group with itself as anchor
//   - a message with a parent joins the replies of the group whose anchor id
//     matches, when that group already exists
//   - otherwise the message is promoted to a new top-level anchor; unknown
//     and not-yet-seen parents are tolerated rather than rejected
//
// Calling Group twice without intervening appends yields equal results.
func (m *Model) Group() []Group {
	groups := make([]Group, 0, len(m.msgs))
	byAnchor := make(map[string]int, len(m.msgs)) // anchor id -> group index
	for _, msg := range m.msgs {
		if msg.ParentID != "" {
			if gi, ok := byAnchor[msg.ParentID]; ok {
				groups[gi].Replies = append(groups[gi].Replies, msg)
				continue
			}
			// orphan reply: parent unseen or not an anchor; promote
		}
		byAnchor[msg.ID] = len(groups)
		groups = append(groups, Group{Anchor: msg})
	}
	return groups
}

func checkShape(msg models.Message) error {
	switch {
	case msg.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedMessage)
	case msg.Role == "":
		return fmt.Errorf("%w: missing role", ErrMalformedMessage)
	case msg.Content == "":
		return fmt.Errorf("%w: missing content", ErrMalformedMessage)
	case msg.TS == 0:
		return fmt.Errorf("%w: missing timestamp", ErrMalformedMessage)
	}
	return nil
}
