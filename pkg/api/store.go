package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/entries"
)

// HandleStore handles POST requests to store an entry in a pack. The body's
// "data" key becomes the opaque payload; every other key is an index field.
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pack := vars["pack"]

	log.Printf("INFO: handleStore called for pack '%s'", pack)

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := domain.IndexPatch{}
	for k, v := range body {
		if k != "data" {
			fields[k] = v
		}
	}

	entry, err := h.repo.Store(entries.StoreRequest{
		Fields: fields,
		Data:   body["data"],
		Pack:   pack,
		Actor:  actorFromRequest(r),
	})
	if err != nil {
		log.Printf("ERROR: Store failed for pack '%s': %v", pack, err)
		WriteDomainError(w, err)
		return
	}
	if entry == nil {
		// Proxied write that no privileged actor answered.
		WriteJSONError(w, http.StatusGatewayTimeout, "store request was not answered")
		return
	}

	log.Printf("INFO: Stored entry '%s' in pack '%s'", entry.ID, pack)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}
