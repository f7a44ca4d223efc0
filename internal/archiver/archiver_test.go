package archiver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"explora/pkg/config"
	"explora/pkg/models"
	"explora/pkg/store"
)

func openTemp(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func saveConv(t *testing.T, c models.Conversation) {
	t.Helper()
	b, _ := json.Marshal(c)
	if err := store.SaveConversation(c.ID, string(b)); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
}

func effWith(arc config.ArchiveConfig) config.EffectiveConfigResult {
	cfg := &config.Config{}
	cfg.Archive = arc
	return config.EffectiveConfigResult{Config: cfg}
}

func TestRunOnceArchivesIdleConversations(t *testing.T) {
	openTemp(t)
	dir := t.TempDir()

	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	saveConv(t, models.Conversation{ID: "c-old", Title: "Old topic", Slug: "old-topic", UpdatedTS: old})
	saveConv(t, models.Conversation{ID: "c-new", Title: "Fresh", UpdatedTS: time.Now().UTC().UnixNano()})
	if err := store.SaveMessage("c-old", models.Message{ID: "m1", Conversation: "c-old", Role: models.RoleUser, Content: "hi", TS: 1}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	eff := effWith(config.ArchiveConfig{
		Enabled:    true,
		IdlePeriod: config.Duration(24 * time.Hour),
		GuideDir:   dir,
	})
	if err := RunOnce(context.Background(), eff); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	s, _ := store.GetConversation("c-old")
	var got models.Conversation
	_ = json.Unmarshal([]byte(s), &got)
	if !got.Archived {
		t.Fatalf("idle conversation not archived: %+v", got)
	}

	s, _ = store.GetConversation("c-new")
	_ = json.Unmarshal([]byte(s), &got)
	if got.Archived {
		t.Fatalf("fresh conversation archived: %+v", got)
	}

	b, err := os.ReadFile(filepath.Join(dir, "old-topic.md"))
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if !strings.Contains(string(b), "# Old topic") {
		t.Fatalf("snapshot content:\n%s", string(b))
	}
}

func TestRunOnceDryRun(t *testing.T) {
	openTemp(t)
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	saveConv(t, models.Conversation{ID: "c1", UpdatedTS: old})

	eff := effWith(config.ArchiveConfig{
		Enabled:    true,
		IdlePeriod: config.Duration(24 * time.Hour),
		DryRun:     true,
	})
	if err := RunOnce(context.Background(), eff); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	s, _ := store.GetConversation("c1")
	var got models.Conversation
	_ = json.Unmarshal([]byte(s), &got)
	if got.Archived {
		t.Fatal("dry run must not archive")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	eff := effWith(config.ArchiveConfig{Enabled: true, Cron: "not a cron"})
	if _, err := Start(context.Background(), eff); err == nil {
		t.Fatal("expected error for invalid cron")
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	cancel, err := Start(context.Background(), effWith(config.ArchiveConfig{Enabled: false}))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
}

func TestRunImmediateRequiresConfig(t *testing.T) {
	storedEff = nil
	if err := RunImmediate(); err == nil {
		t.Fatal("expected error without stored config")
	}
	openTemp(t)
	SetEffectiveConfig(effWith(config.ArchiveConfig{Enabled: true, IdlePeriod: config.Duration(time.Hour)}))
	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
}
