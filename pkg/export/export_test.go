package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"explora/pkg/models"
	"explora/pkg/thread"
)

func sampleGuide() *Guide {
	conv := models.Conversation{ID: "c1", Title: "What is inflation?", Topic: "economics", Author: "u1"}
	groups := []thread.Group{
		{
			Anchor: models.Message{ID: "m1", Role: models.RoleUser, Content: "What is inflation?", TS: 1},
			Replies: []models.Message{
				{ID: "m2", Role: models.RoleAssistant, Content: "A sustained rise in prices.", TS: 2, ParentID: "m1", Pinned: true, Confidence: "high"},
			},
		},
		{
			Anchor: models.Message{
				ID: "m3", Role: models.RoleSystem, Content: "Branch: central banks", TS: 3,
				Highlight: &models.Highlight{SourceID: "m2", Excerpt: "sustained rise in prices"},
			},
		},
	}
	return BuildGuide(conv, groups)
}

func TestBuildGuideCollectsPins(t *testing.T) {
	g := sampleGuide()
	if len(g.Pins) != 1 || g.Pins[0].ID != "m2" {
		t.Fatalf("pins = %+v", g.Pins)
	}
}

func TestNewExporter(t *testing.T) {
	for _, f := range []string{"md", "markdown", "json", "yaml", "yml"} {
		if _, err := NewExporter(f); err != nil {
			t.Fatalf("NewExporter(%s): %v", f, err)
		}
	}
	if _, err := NewExporter("pdf"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	e := &MarkdownExporter{}
	if err := e.Export(sampleGuide(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# What is inflation?",
		"## Pinned insights",
		"- A sustained rise in prices.",
		"confidence: high",
		"> branched from: sustained rise in prices",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
	if e.Extension() != "md" {
		t.Fatalf("extension = %s", e.Extension())
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleGuide(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got Guide
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Conversation.ID != "c1" || len(got.Groups) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	e := &YAMLExporter{}
	if err := e.Export(sampleGuide(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), "conversation:") {
		t.Fatalf("yaml output missing conversation block:\n%s", buf.String())
	}
	if e.Extension() != "yaml" {
		t.Fatalf("extension = %s", e.Extension())
	}
}
