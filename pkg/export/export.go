package export

import (
	"fmt"
	"io"

	"explora/pkg/models"
	"explora/pkg/thread"
)

// Guide is the exportable learning-guide view of a conversation: the grouped
// exchanges in study order plus the learner's pinned insights.
type Guide struct {
	Conversation models.Conversation `json:"conversation" yaml:"conversation"`
	Groups       []thread.Group      `json:"groups" yaml:"groups"`
	Pins         []models.Message    `json:"pins,omitempty" yaml:"pins,omitempty"`
}

// BuildGuide assembles a Guide from a conversation and its grouped thread.
func BuildGuide(conv models.Conversation, groups []thread.Group) *Guide {
	g := &Guide{Conversation: conv, Groups: groups}
	for _, grp := range groups {
		if grp.Anchor.Pinned {
			g.Pins = append(g.Pins, grp.Anchor)
		}
		for _, r := range grp.Replies {
			if r.Pinned {
				g.Pins = append(g.Pins, r)
			}
		}
	}
	return g
}

// Exporter defines the interface for all guide export formats.
type Exporter interface {
	Export(g *Guide, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, yaml)", format)
	}
}
