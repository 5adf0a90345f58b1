package handler

import (
	"net/http"
	"strings"

	"github.com/dukerupert/plantcare/internal/careinfo"
)

type CareHandler struct {
	advisor *careinfo.Advisor
}

func NewCareHandler(advisor *careinfo.Advisor) *CareHandler {
	return &CareHandler{advisor: advisor}
}

// Get handles GET /api/care-info?name=. Without a name it lists the bundled
// reference table.
func (h *CareHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusOK, h.advisor.Table().All())
		return
	}

	s := h.advisor.Suggest(r.Context(), name)
	if s == nil {
		writeError(w, http.StatusNotFound, "no care information for "+name)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
