package http

import (
	"net/http"

	"github.com/gatekit/gatekit/internal/admin/store"
	"github.com/gatekit/gatekit/pkg/slogx"
)

type APIListHandler struct {
	Store store.Store
}

type apiResponse struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// ServeHTTP lists all registered APIs. Capability-gated: only roles
// granted (GET, /api/v1/api/list) or superusers reach it.
//
//	@Summary		List registered APIs
//	@Description	Returns every API registered for capability grants.
//	@Tags			API
//	@Security		TokenAuth
//	@Produce		json
//	@Success		200	{object}	Response	"list of apis"
//	@Failure		401	{object}	Response	"not authenticated"
//	@Failure		403	{object}	Response	"not authorized"
//	@Router			/api/v1/api/list [get].
func (h *APIListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	apis, err := h.Store.APIs().ListAll(ctx)
	if err != nil {
		log.Warn("failed to list apis", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]apiResponse, 0, len(apis))
	for _, a := range apis {
		out = append(out, apiResponse{ID: a.ID, Method: a.Method, Path: a.Path, Summary: a.Summary})
	}
	writeOK(w, out)
}
