// Package debugapi exposes a small local HTTP surface for inspecting
// the client while it runs: a health check and the current view as
// JSON.
package debugapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(c Viewer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/state", State(c))
	return r
}
