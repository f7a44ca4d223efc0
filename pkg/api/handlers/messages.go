package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"explora/pkg/logger"
	"explora/pkg/models"
	"explora/pkg/store"
	"explora/pkg/telemetry"
	"explora/pkg/utils"
	"explora/pkg/validation"

	"github.com/gorilla/mux"
)

// RegisterMessages registers message-scoped HTTP routes to the provided
// router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/versions", listVersions).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/pin", pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", unpinMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/confidence", setConfidence).Methods(http.MethodPut)
}

// latestMessage loads the newest stored version of a message.
func latestMessage(id string) (models.Message, error) {
	var m models.Message
	s, err := store.GetLatestMessage(id)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal([]byte(s), &m)
	return m, err
}

// saveEdit appends a new version for an edited message. The original record
// stays in the stream; readers fold versions to see the latest state.
func saveEdit(w http.ResponseWriter, m models.Message, event string) {
	conv, err := loadConversation(m.Conversation)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.Archived {
		utils.JSONError(w, http.StatusConflict, "conversation archived")
		return
	}
	if err := store.SaveMessage(m.Conversation, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	touchConversation(m.Conversation)
	telemetry.MessagesAppended.Inc()
	logger.Info(event, zap.String("conversation", m.Conversation), zap.String("msg_id", m.ID))
	_ = json.NewEncoder(w).Encode(m)
}

// getMessage handles GET /messages/{id} and returns the latest version.
func getMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	m, err := latestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	_ = json.NewEncoder(w).Encode(m)
}

// listVersions handles GET /messages/{id}/versions and returns every stored
// version in chronological order.
func listVersions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	vers, err := store.ListMessageVersions(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(vers) == 0 {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		ID       string           `json:"id"`
		Versions []models.Message `json:"versions"`
	}{ID: id, Versions: store.DecodeMessages(vers)})
}

// pinMessage handles POST /messages/{id}/pin.
func pinMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	m, err := latestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if m.Pinned {
		_ = json.NewEncoder(w).Encode(m)
		return
	}
	m.Pinned = true
	saveEdit(w, m, "message_pinned")
}

// unpinMessage handles DELETE /messages/{id}/pin.
func unpinMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	m, err := latestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if !m.Pinned {
		_ = json.NewEncoder(w).Encode(m)
		return
	}
	m.Pinned = false
	saveEdit(w, m, "message_unpinned")
}

// setConfidence handles PUT /messages/{id}/confidence with a body of
// {"confidence":"low|medium|high"}.
func setConfidence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	var body struct {
		Confidence string `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateConfidence(body.Confidence); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := latestMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if m.Confidence == body.Confidence {
		_ = json.NewEncoder(w).Encode(m)
		return
	}
	m.Confidence = body.Confidence
	saveEdit(w, m, "message_confidence_set")
}
