package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Entry operations
	router.HandleFunc("/packs/{pack}/entries", h.HandleStore).Methods("POST")
	router.HandleFunc("/packs/{pack}/entries", h.HandleRetrieve).Methods("GET")

	// Entry operations (by ID)
	router.HandleFunc("/packs/{pack}/entries/{id}", h.HandleGetById).Methods("GET")
	router.HandleFunc("/packs/{pack}/entries/{id}", h.HandleDeleteById).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}
