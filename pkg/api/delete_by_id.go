package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleDeleteById handles DELETE requests to remove a specific entry by ID
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pack := vars["pack"]
	entryId := vars["id"]

	log.Printf("INFO: handleDeleteById called for pack '%s', entry '%s'", pack, entryId)

	if err := h.repo.Delete(pack, []string{entryId}, actorFromRequest(r)); err != nil {
		log.Printf("ERROR: Delete failed for entry '%s' in pack '%s': %v", entryId, pack, err)
		WriteDomainError(w, err)
		return
	}

	log.Printf("INFO: Deleted entry '%s' from pack '%s'", entryId, pack)
	w.WriteHeader(http.StatusNoContent)
}
