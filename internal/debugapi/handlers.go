package debugapi

import (
	"encoding/json"
	"net/http"

	"pokerclient/internal/client"
)

// Viewer is the read side of the client. *client.Client satisfies it.
type Viewer interface {
	View() client.View
}

func State(c Viewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.View())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
