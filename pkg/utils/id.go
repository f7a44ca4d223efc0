package utils

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// GenID returns a new message identifier.
func GenID() string {
	return "msg-" + uuid.NewString()
}

// GenConversationID returns a new conversation identifier.
func GenConversationID() string {
	return "conv-" + uuid.NewString()
}

// MakeSlug derives a URL-friendly slug from a title, suffixed with the tail
// of the id to keep slugs unique across same-titled conversations.
func MakeSlug(title, id string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	tail := id
	if i := strings.LastIndex(id, "-"); i >= 0 && i+1 < len(id) {
		tail = id[i+1:]
	}
	if len(tail) > 8 {
		tail = tail[:8]
	}
	if s == "" {
		return tail
	}
	return s + "-" + tail
}
