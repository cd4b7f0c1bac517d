package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleGetById handles GET requests to retrieve a specific entry by ID
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pack := vars["pack"]
	entryId := vars["id"]

	log.Printf("INFO: handleGetById called for pack '%s', entry '%s'", pack, entryId)

	entry, err := h.repo.Get(pack, entryId)
	if err != nil {
		log.Printf("ERROR: Entry '%s' not found in pack '%s': %v", entryId, pack, err)
		WriteDomainError(w, err)
		return
	}

	log.Printf("INFO: Retrieved entry '%s' from pack '%s'", entryId, pack)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}
