package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"explora/pkg/auth"
	"explora/pkg/events"
	"explora/pkg/export"
	"explora/pkg/logger"
	"explora/pkg/models"
	"explora/pkg/store"
	"explora/pkg/telemetry"
	"explora/pkg/thread"
	"explora/pkg/utils"
	"explora/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterConversations registers all conversation-scoped HTTP routes to the
// provided router.
func RegisterConversations(r *mux.Router) {
	// Collection routes
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)

	// Single resource routes
	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/archive", archiveConversation).Methods(http.MethodPost)

	// Conversation-scoped messages and views
	r.HandleFunc("/conversations/{id}/messages", appendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/groups", listGroups).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/branches", createBranch).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/pins", listPins).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/guide", exportGuide).Methods(http.MethodGet)
}

// createConversation handles POST /conversations. The author comes from the
// resolved caller identity; title and topic come from the body.
func createConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var c models.Conversation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	author, code, msg := auth.ResolveAuthorFromRequest(r, c.Author)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	c.Author = author
	if c.ID == "" {
		c.ID = utils.GenConversationID()
	}
	if c.CreatedTS == 0 {
		c.CreatedTS = time.Now().UTC().UnixNano()
	}
	if c.UpdatedTS == 0 {
		c.UpdatedTS = c.CreatedTS
	}
	if c.Slug == "" {
		c.Slug = utils.MakeSlug(c.Title, c.ID)
	}

	b, _ := json.Marshal(c)
	if err := store.SaveConversation(c.ID, string(b)); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("conversation_created", zap.String("conversation", c.ID), zap.String("author", c.Author))
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(c)
}

// listConversations handles GET /conversations. The author is taken from the
// caller identity and filters the listing. Optional query parameters:
//   - "title": case-insensitive substring match on the title.
//   - "slug": exact slug match.
//   - "archived": "true" includes only archived, "false" only active.
func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	author, code, msg := auth.ResolveAuthorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	titleQ := r.URL.Query().Get("title")
	slugQ := r.URL.Query().Get("slug")
	archivedQ := r.URL.Query().Get("archived")

	vals, err := store.ListConversations()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := []models.Conversation{}
	for _, v := range vals {
		var c models.Conversation
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			continue
		}
		if c.Author != author {
			continue
		}
		if titleQ != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(titleQ)) {
			continue
		}
		if slugQ != "" && c.Slug != slugQ {
			continue
		}
		if archivedQ == "true" && !c.Archived {
			continue
		}
		if archivedQ == "false" && c.Archived {
			continue
		}
		out = append(out, c)
	}

	_ = json.NewEncoder(w).Encode(struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: out})
}

// getConversation handles GET /conversations/{id}. Returns 404 when the
// conversation does not exist and 403 when the caller is not its author.
func getConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	author, code, msg := auth.ResolveAuthorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}

	c, err := loadConversation(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if c.Author != author {
		utils.JSONError(w, http.StatusForbidden, "author does not match")
		return
	}
	_ = json.NewEncoder(w).Encode(c)
}

// archiveConversation handles POST /conversations/{id}/archive to archive a
// conversation immediately rather than waiting for the idle sweep.
func archiveConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	if _, err := loadConversation(id); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err := store.ArchiveConversation(id, time.Now().UTC().UnixNano()); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.ConversationsArchived.Inc()
	c, _ := loadConversation(id)
	_ = json.NewEncoder(w).Encode(c)
}

// appendMessage handles POST /conversations/{id}/messages. The message id is
// generated when absent; a supplied id that already exists in the thread is
// rejected with 409.
func appendMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	conv, err := loadConversation(convID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.Archived {
		utils.JSONError(w, http.StatusConflict, "conversation archived")
		return
	}

	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	author, code, msg := auth.ResolveAuthorFromRequest(r, m.Author)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	m.Author = author
	m.Conversation = convID
	if m.ID == "" {
		m.ID = utils.GenID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	if err := validation.ValidateMessage(m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	model, err := loadModel(convID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := model.Append(m); err != nil {
		switch {
		case errors.Is(err, thread.ErrDuplicateID):
			utils.JSONError(w, http.StatusConflict, err.Error())
		case errors.Is(err, thread.ErrMalformedMessage):
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		default:
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if err := store.SaveMessage(convID, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	touchConversation(convID)
	telemetry.MessagesAppended.Inc()
	events.Default.MessageSaved(m)
	logger.Info("message_appended", zap.String("conversation", convID), zap.String("msg_id", m.ID))
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(m)
}

// listMessages handles GET /conversations/{id}/messages. By default it
// returns the folded view (one record per message id, latest payload, first
// appended order). Pass raw=true for the underlying version stream.
func listMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	if _, err := loadConversation(convID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	vals, err := store.ListMessages(convID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := store.DecodeMessages(vals)
	if r.URL.Query().Get("raw") != "true" {
		out = thread.FoldVersions(out)
	}

	// Optional limit keeps the most recent records
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(out) {
			out = out[len(out)-lim:]
		}
	}

	logger.Info("messages_list", zap.String("conversation", convID), zap.Int("count", len(out)))
	_ = json.NewEncoder(w).Encode(struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}{Conversation: convID, Messages: out})
}

// listGroups handles GET /conversations/{id}/groups and returns the grouped
// thread view: anchors in first-seen order, each with its replies.
func listGroups(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	if _, err := loadConversation(convID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	model, err := loadModel(convID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	groups := model.Group()
	telemetry.GroupsComputed.Inc()
	_ = json.NewEncoder(w).Encode(struct {
		Conversation string         `json:"conversation"`
		Groups       []thread.Group `json:"groups"`
	}{Conversation: convID, Groups: groups})
}

type branchRequest struct {
	SourceID string `json:"source_id"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Author   string `json:"author"`
}

// createBranch handles POST /conversations/{id}/branches. It opens a new
// anchor in the same conversation, marked with the highlight it grew from.
func createBranch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	conv, err := loadConversation(convID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.Archived {
		utils.JSONError(w, http.StatusConflict, "conversation archived")
		return
	}

	var br branchRequest
	if err := json.NewDecoder(r.Body).Decode(&br); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	author, code, msg := auth.ResolveAuthorFromRequest(r, br.Author)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if br.SourceID == "" || br.Excerpt == "" {
		utils.JSONError(w, http.StatusBadRequest, "source_id and excerpt are required")
		return
	}

	model, err := loadModel(convID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, ok := model.Get(br.SourceID); !ok {
		utils.JSONError(w, http.StatusNotFound, "source message not found")
		return
	}

	content := br.Content
	if content == "" {
		content = "Branching from: " + br.Excerpt
	}
	anchor := models.Message{
		ID:           utils.GenID(),
		Conversation: convID,
		Role:         models.RoleSystem,
		Author:       author,
		TS:           time.Now().UTC().UnixNano(),
		Content:      content,
		Highlight:    &models.Highlight{SourceID: br.SourceID, Excerpt: br.Excerpt},
	}
	if err := validation.ValidateMessage(anchor); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.Append(anchor); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := store.SaveMessage(convID, anchor); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	touchConversation(convID)
	telemetry.BranchesCreated.Inc()
	events.Default.BranchOpened(convID, anchor)
	logger.Info("branch_created",
		zap.String("conversation", convID), zap.String("branch", anchor.ID), zap.String("source", br.SourceID))
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(anchor)
}

// listPins handles GET /conversations/{id}/pins and returns the pinned
// messages in thread order.
func listPins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	if _, err := loadConversation(convID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	model, err := loadModel(convID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pins := []models.Message{}
	for _, m := range model.Messages() {
		if m.Pinned {
			pins = append(pins, m)
		}
	}
	_ = json.NewEncoder(w).Encode(struct {
		Conversation string           `json:"conversation"`
		Pins         []models.Message `json:"pins"`
	}{Conversation: convID, Pins: pins})
}

// exportGuide handles GET /conversations/{id}/guide?format=md|json|yaml and
// streams the learning guide in the requested format.
func exportGuide(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]
	conv, err := loadConversation(convID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "md"
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	model, err := loadModel(convID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	guide := export.BuildGuide(conv, model.Group())

	switch exporter.Extension() {
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	if err := exporter.Export(guide, w); err != nil {
		logger.Error("guide_export_failed", zap.String("conversation", convID), zap.Error(err))
		return
	}
	telemetry.GuidesExported.WithLabelValues(exporter.Extension()).Inc()
	logger.Info("guide_exported", zap.String("conversation", convID), zap.String("format", exporter.Extension()))
}
