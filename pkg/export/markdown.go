package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter renders a guide as a readable Markdown study document.
type MarkdownExporter struct{}

// Export writes the guide to w in Markdown format.
func (e *MarkdownExporter) Export(g *Guide, w io.Writer) error {
	title := g.Conversation.Title
	if title == "" {
		title = g.Conversation.ID
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)

	if g.Conversation.Topic != "" {
		_, _ = fmt.Fprintf(w, "**Topic:** %s  \n", g.Conversation.Topic)
	}
	if g.Conversation.Author != "" {
		_, _ = fmt.Fprintf(w, "**Learner:** %s  \n", g.Conversation.Author)
	}
	_, _ = fmt.Fprintf(w, "**Exchanges:** %d\n\n", len(g.Groups))

	if g.Conversation.Archived {
		_, _ = fmt.Fprintf(w, "_Archived conversation._\n\n")
	}

	if len(g.Pins) > 0 {
		_, _ = fmt.Fprintf(w, "## Pinned insights\n\n")
		for _, p := range g.Pins {
			_, _ = fmt.Fprintf(w, "- %s\n", firstLine(p.Content))
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, grp := range g.Groups {
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", grp.Anchor.Role, tags(grp.Anchor.Pinned, grp.Anchor.Confidence), escapeMarkdown(grp.Anchor.Content))
		if grp.Anchor.Highlight != nil {
			_, _ = fmt.Fprintf(w, "> branched from: %s\n\n", escapeMarkdown(grp.Anchor.Highlight.Excerpt))
		}
		for _, r := range grp.Replies {
			_, _ = fmt.Fprintf(w, "  - **%s:**%s %s\n", r.Role, tags(r.Pinned, r.Confidence), escapeMarkdown(firstLine(r.Content)))
		}
		if len(grp.Replies) > 0 {
			_, _ = fmt.Fprintf(w, "\n")
		}
		if i < len(g.Groups)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string {
	return "md"
}

func tags(pinned bool, confidence string) string {
	var parts []string
	if pinned {
		parts = append(parts, "pinned")
	}
	if confidence != "" {
		parts = append(parts, "confidence: "+confidence)
	}
	if len(parts) == 0 {
		return ""
	}
	return " _(" + strings.Join(parts, ", ") + ")_"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// escapeMarkdown escapes emphasis markers outside code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
