package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"explora/pkg/models"
	"explora/pkg/store"
	"explora/pkg/thread"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	srv := httptest.NewServer(Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createConv(t *testing.T, srv *httptest.Server, title string) models.Conversation {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/conversations", map[string]string{"title": title})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation status = %d", resp.StatusCode)
	}
	return decode[models.Conversation](t, resp)
}

func appendMsg(t *testing.T, srv *httptest.Server, convID string, m models.Message) (*http.Response, models.Message) {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/v1/conversations/"+convID+"/messages", m)
	if resp.StatusCode != http.StatusCreated {
		return resp, models.Message{}
	}
	return resp, decode[models.Message](t, resp)
}

func TestConversationLifecycle(t *testing.T) {
	srv := newServer(t)

	c := createConv(t, srv, "What is inflation?")
	if c.ID == "" || c.Slug == "" || c.Author != "u1" {
		t.Fatalf("conversation not filled in: %+v", c)
	}

	resp := do(t, http.MethodGet, srv.URL+"/v1/conversations", nil)
	list := decode[struct {
		Conversations []models.Conversation `json:"conversations"`
	}](t, resp)
	if len(list.Conversations) != 1 || list.Conversations[0].ID != c.ID {
		t.Fatalf("listing = %+v", list)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID, nil)
	got := decode[models.Conversation](t, resp)
	if got.Title != "What is inflation?" {
		t.Fatalf("title = %s", got.Title)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing conversation status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAppendAndGroup(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Economics")

	// anchor 1, anchor 2, then a late reply to anchor 1
	_, m1 := appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "What is inflation?"})
	_, m2 := appendMsg(t, srv, c.ID, models.Message{ID: "m2", Role: models.RoleUser, Content: "And deflation?"})
	_, m3 := appendMsg(t, srv, c.ID, models.Message{ID: "m3", Role: models.RoleAssistant, Content: "A rise in prices.", ParentID: "m1"})
	if m1.ID != "m1" || m2.ID != "m2" || m3.ParentID != "m1" {
		t.Fatalf("append results: %+v %+v %+v", m1, m2, m3)
	}

	resp := do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/groups", nil)
	view := decode[struct {
		Groups []thread.Group `json:"groups"`
	}](t, resp)
	if len(view.Groups) != 2 {
		t.Fatalf("groups = %+v", view.Groups)
	}
	if view.Groups[0].Anchor.ID != "m1" || view.Groups[1].Anchor.ID != "m2" {
		t.Fatalf("anchor order: %s, %s", view.Groups[0].Anchor.ID, view.Groups[1].Anchor.ID)
	}
	if len(view.Groups[0].Replies) != 1 || view.Groups[0].Replies[0].ID != "m3" {
		t.Fatalf("replies = %+v", view.Groups[0].Replies)
	}
}

func TestAppendDuplicateAndMalformed(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Dups")

	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "hello"})

	resp, _ := appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = appendMsg(t, srv, c.ID, models.Message{ID: "m2", Role: models.RoleUser})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing content status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = appendMsg(t, srv, c.ID, models.Message{ID: "m3", Role: "moderator", Content: "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBranchFromHighlight(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Branching")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleAssistant, Content: "Central banks target 2% inflation."})

	resp := do(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/branches",
		map[string]string{"source_id": "m1", "excerpt": "2% inflation"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("branch status = %d", resp.StatusCode)
	}
	anchor := decode[models.Message](t, resp)
	if anchor.Role != models.RoleSystem || anchor.Highlight == nil || anchor.Highlight.SourceID != "m1" {
		t.Fatalf("branch anchor = %+v", anchor)
	}
	if anchor.ParentID != "" {
		t.Fatalf("branch anchor should not have a parent: %+v", anchor)
	}

	// the branch shows up as its own group
	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/groups", nil)
	view := decode[struct {
		Groups []thread.Group `json:"groups"`
	}](t, resp)
	if len(view.Groups) != 2 || view.Groups[1].Anchor.ID != anchor.ID {
		t.Fatalf("groups after branch = %+v", view.Groups)
	}

	// unknown source is rejected
	resp = do(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/branches",
		map[string]string{"source_id": "missing", "excerpt": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown source status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// excerpt is required
	resp = do(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/branches",
		map[string]string{"source_id": "m1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing excerpt status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPinAndConfidence(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Pins")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleAssistant, Content: "Key insight."})

	resp := do(t, http.MethodPost, srv.URL+"/v1/messages/m1/pin", nil)
	pinned := decode[models.Message](t, resp)
	if !pinned.Pinned {
		t.Fatalf("message not pinned: %+v", pinned)
	}

	resp = do(t, http.MethodPut, srv.URL+"/v1/messages/m1/confidence", map[string]string{"confidence": "high"})
	tagged := decode[models.Message](t, resp)
	if tagged.Confidence != "high" || !tagged.Pinned {
		t.Fatalf("confidence edit lost state: %+v", tagged)
	}

	resp = do(t, http.MethodPut, srv.URL+"/v1/messages/m1/confidence", map[string]string{"confidence": "certain"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad confidence status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// pins listing reflects the latest state
	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/pins", nil)
	pins := decode[struct {
		Pins []models.Message `json:"pins"`
	}](t, resp)
	if len(pins.Pins) != 1 || pins.Pins[0].ID != "m1" {
		t.Fatalf("pins = %+v", pins.Pins)
	}

	// edits accumulate as versions; the folded message list stays deduplicated
	resp = do(t, http.MethodGet, srv.URL+"/v1/messages/m1/versions", nil)
	vers := decode[struct {
		Versions []models.Message `json:"versions"`
	}](t, resp)
	if len(vers.Versions) != 3 {
		t.Fatalf("versions = %d", len(vers.Versions))
	}
	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/messages", nil)
	msgs := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, resp)
	if len(msgs.Messages) != 1 || msgs.Messages[0].Confidence != "high" {
		t.Fatalf("folded messages = %+v", msgs.Messages)
	}

	// unpin
	resp = do(t, http.MethodDelete, srv.URL+"/v1/messages/m1/pin", nil)
	unpinned := decode[models.Message](t, resp)
	if unpinned.Pinned {
		t.Fatalf("message still pinned: %+v", unpinned)
	}
}

func TestGuideExport(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Guide")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "What is inflation?"})
	appendMsg(t, srv, c.ID, models.Message{ID: "m2", Role: models.RoleAssistant, Content: "A rise in prices.", ParentID: "m1"})

	resp := do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/guide", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("content type = %s", ct)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	if !strings.Contains(buf.String(), "# Guide") {
		t.Fatalf("markdown guide missing title:\n%s", buf.String())
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/guide?format=json", nil)
	guide := decode[struct {
		Groups []thread.Group `json:"groups"`
	}](t, resp)
	if len(guide.Groups) != 1 {
		t.Fatalf("json guide groups = %+v", guide.Groups)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/guide?format=pdf", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported format status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestArchiveBlocksWrites(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Archive me")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "hi"})

	resp := do(t, http.MethodPost, srv.URL+"/v1/conversations/"+c.ID+"/archive", nil)
	archived := decode[models.Conversation](t, resp)
	if !archived.Archived {
		t.Fatalf("conversation not archived: %+v", archived)
	}

	resp, _ = appendMsg(t, srv, c.ID, models.Message{ID: "m2", Role: models.RoleUser, Content: "too late"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("append to archived status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, http.MethodPost, srv.URL+"/v1/messages/m1/pin", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pin in archived status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// reads still work
	resp = do(t, http.MethodGet, srv.URL+"/v1/conversations/"+c.ID+"/guide", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("guide for archived status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminEndpoints(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Admin")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "hi"})

	resp := do(t, http.MethodGet, srv.URL+"/admin/stats", nil)
	stats := decode[struct {
		Conversations int   `json:"conversations"`
		Messages      int64 `json:"messages"`
	}](t, resp)
	if stats.Conversations != 1 || stats.Messages != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	resp = do(t, http.MethodGet, srv.URL+"/admin/keys?prefix=conv:", nil)
	keys := decode[struct {
		Keys []string `json:"keys"`
	}](t, resp)
	if len(keys.Keys) != 2 {
		t.Fatalf("keys = %v", keys.Keys)
	}

	// non-admin role is rejected
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/stats", nil)
	req.Header.Set("X-Role-Name", "frontend")
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if r2.StatusCode != http.StatusForbidden {
		t.Fatalf("frontend admin status = %d", r2.StatusCode)
	}
	r2.Body.Close()
}

func TestMessagesRawStream(t *testing.T) {
	srv := newServer(t)
	c := createConv(t, srv, "Raw")
	appendMsg(t, srv, c.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "hi"})
	resp := do(t, http.MethodPost, srv.URL+"/v1/messages/m1/pin", nil)
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+fmt.Sprintf("/v1/conversations/%s/messages?raw=true", c.ID), nil)
	raw := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, resp)
	if len(raw.Messages) != 2 {
		t.Fatalf("raw stream = %d records", len(raw.Messages))
	}
}
