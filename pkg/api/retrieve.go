package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/entries"
)

// HandleRetrieve handles GET requests to search a pack's entries. Supported
// query parameters: id (repeatable), q, name, type (repeatable), tag
// (repeatable), match_all, full, limit, offset, after, before.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pack := vars["pack"]
	params := r.URL.Query()

	log.Printf("INFO: handleRetrieve called for pack '%s'", pack)

	req := entries.RetrieveRequest{
		IDs:   params["id"],
		Pack:  pack,
		Query: params.Get("q"),
		Name:  params.Get("name"),
		Types: params["type"],
		Tags:  params["tag"],
		Full:  params.Get("full") == "true",
		Actor: actorFromRequest(r),
	}
	if params.Get("match_all") == "true" {
		matchAny := false
		req.MatchAnyTag = &matchAny
	}

	results, err := h.repo.Retrieve(req)
	if err != nil {
		log.Printf("ERROR: Retrieve failed for pack '%s': %v", pack, err)
		WriteDomainError(w, err)
		return
	}

	opts := domain.DefaultPaginationOptions()
	if limit := params.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := params.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}
	opts.After = params.Get("after")
	opts.Before = params.Get("before")

	page, err := entries.Paginate(results, opts)
	if err != nil {
		log.Printf("ERROR: Pagination failed for pack '%s': %v", pack, err)
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("INFO: Retrieved %d of %d entries from pack '%s'", len(page.Entries), page.Total, pack)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}
