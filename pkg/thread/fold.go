package thread

import "explora/pkg/models"

// FoldVersions collapses a stored message stream into one message per id.
// The store appends a fresh record for every save, so edits such as pin or
// confidence changes show up as later records with a repeated id. The first
// occurrence fixes a message's position; the latest occurrence supplies its
// payload. Output order is first-seen insertion order, which keeps anchor and
// reply ordering stable across edits.
func FoldVersions(stream []models.Message) []models.Message {
	out := make([]models.Message, 0, len(stream))
	pos := make(map[string]int, len(stream))
	for _, msg := range stream {
		if i, ok := pos[msg.ID]; ok {
			out[i] = msg
			continue
		}
		pos[msg.ID] = len(out)
		out = append(out, msg)
	}
	return out
}

// Rebuild constructs a Model from a stored message stream, folding repeated
// ids first so Append never sees duplicates.
func Rebuild(stream []models.Message) (*Model, error) {
	m := New()
	for _, msg := range FoldVersions(stream) {
		if err := m.Append(msg); err != nil {
			return nil, err
		}
	}
	return m, nil
}
