package api

import (
	"net/http"

	"explora/pkg/api/handlers"

	"github.com/gorilla/mux"
)

// Handler returns the HTTP handler for the Explora API.
func Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterConversations(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterAdmin(r.PathPrefix("/admin").Subrouter())
	return r
}
