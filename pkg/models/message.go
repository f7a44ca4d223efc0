package models

// Roles a message may carry. Matching is exact; validation enforces the set.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Role         string `json:"role"`
	Author       string `json:"author,omitempty"`
	TS           int64  `json:"ts"`
	Content      string `json:"content"`
	// Optional parent anchor message ID; absent for main-thread messages
	ParentID string `json:"parent_id,omitempty"`
	// Pinned marks the message as a saved insight
	Pinned bool `json:"pinned,omitempty"`
	// Confidence is an optional learner self-assessment tag (low|medium|high)
	Confidence string `json:"confidence,omitempty"`
	// Highlight carries branch-seed context when this message anchors a branch
	Highlight *Highlight `json:"highlight,omitempty"`
}

// Highlight records the text selection a branch anchor was seeded from.
type Highlight struct {
	SourceID string `json:"source_id"`
	Excerpt  string `json:"excerpt"`
}
