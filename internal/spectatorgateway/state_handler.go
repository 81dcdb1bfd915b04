package spectatorgateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StateHandler serves the current view of the entity named by the id URL param.
func (g *Gateway) StateHandler(param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, _, err := g.src.View(r.Context(), chi.URLParam(r, param))
		if err != nil {
			g.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	}
}
