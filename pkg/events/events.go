package events

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"explora/pkg/logger"
	"explora/pkg/models"

	"github.com/nats-io/nats.go"
)

// NATS subjects emitted by the server. Downstream consumers (tutoring agents,
// analytics) subscribe to these to react to learner activity.
const (
	SubjectMessageAppended = "explora.message.appended"
	SubjectBranchCreated   = "explora.branch.created"
)

// MessageAppended is emitted after a message record is accepted into a
// conversation stream.
type MessageAppended struct {
	Conversation string    `json:"conversation"`
	MessageID    string    `json:"message_id"`
	Role         string    `json:"role"`
	ParentID     string    `json:"parent_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BranchCreated is emitted when a learner branches from a highlight.
type BranchCreated struct {
	Conversation string    `json:"conversation"`
	BranchID     string    `json:"branch_id"`
	SourceID     string    `json:"source_id"`
	Excerpt      string    `json:"excerpt"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher publishes domain events to NATS. A nil Publisher is valid and
// drops all events, so callers never have to branch on whether eventing is
// configured.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url. Token may be empty.
func Connect(url, token string) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats_disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats_reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats_connected", zap.String("url", url))
	return &Publisher{conn: nc}, nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

func (p *Publisher) publish(subject string, data any) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error("event_marshal_failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		// event loss is tolerated; the store remains the source of truth
		logger.Warn("event_publish_failed", zap.String("subject", subject), zap.Error(err))
	}
}

// MessageSaved emits a MessageAppended event for the given message.
func (p *Publisher) MessageSaved(m models.Message) {
	p.publish(SubjectMessageAppended, MessageAppended{
		Conversation: m.Conversation,
		MessageID:    m.ID,
		Role:         m.Role,
		ParentID:     m.ParentID,
		Timestamp:    time.Now().UTC(),
	})
}

// BranchOpened emits a BranchCreated event for a new branch anchor.
func (p *Publisher) BranchOpened(convID string, anchor models.Message) {
	ev := BranchCreated{
		Conversation: convID,
		BranchID:     anchor.ID,
		Timestamp:    time.Now().UTC(),
	}
	if anchor.Highlight != nil {
		ev.SourceID = anchor.Highlight.SourceID
		ev.Excerpt = anchor.Highlight.Excerpt
	}
	p.publish(SubjectBranchCreated, ev)
}

// Default is the process-wide publisher. It stays nil when eventing is not
// configured.
var Default *Publisher

// Init connects the default publisher. An empty url leaves eventing off.
func Init(url, token string) error {
	if url == "" {
		return nil
	}
	p, err := Connect(url, token)
	if err != nil {
		return err
	}
	Default = p
	return nil
}
