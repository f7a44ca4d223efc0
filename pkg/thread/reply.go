package thread

// ReplyState tracks which anchor, if any, is the target for the next append.
// It is plain UI/controller state with no bearing on model invariants; the
// zero value is ready to use.
type ReplyState struct {
	anchorID string
}

// StartReply sets the current reply target and returns the anchor id that the
// next appended message should use as its parent.
func (s *ReplyState) StartReply(anchorID string) string {
	s.anchorID = anchorID
	return s.anchorID
}

// CancelReply clears the reply target.
func (s *ReplyState) CancelReply() { s.anchorID = "" }

// Target returns the current reply target anchor id, or "" when none is set.
func (s *ReplyState) Target() string { return s.anchorID }
