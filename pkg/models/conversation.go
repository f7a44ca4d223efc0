package models

type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	// Topic is the learning subject the conversation explores
	Topic string `json:"topic,omitempty"`
	// Author is an opaque identity id (clients manage meaning)
	Author string `json:"author"`
	// Slug is generated from title and id for human-friendly URLs
	Slug string `json:"slug,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time metadata or message activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// Archived marks a conversation as idle-swept; ArchivedTS records when (ns)
	Archived   bool  `json:"archived,omitempty"`
	ArchivedTS int64 `json:"archived_ts,omitempty"`
}
