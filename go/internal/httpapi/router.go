// Package httpapi exposes DraftService over the REST + WebSocket wire
// protocol spec.md §6 defines, using net/http's Go 1.22+ ServeMux path
// patterns the way the teacher's gateway package registers routes
// (RegisterRoutes(mux *http.ServeMux)), wrapped in rs/cors and served
// over h2c.
package httpapi

import (
	"net/http"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/draftservice"
)

// NewHandler builds the complete HTTP handler: REST routes, the
// WebSocket upgrade endpoint, CORS, and h2c (so a reverse proxy can
// speak HTTP/2 to this process without TLS).
func NewHandler(svc *draftservice.Service, hub *broadcast.Hub) http.Handler {
	mux := http.NewServeMux()

	api := &API{svc: svc}
	api.RegisterRoutes(mux)

	ws := NewWebSocketHandler(svc, hub)
	ws.RegisterRoutes(mux)

	corsWrapped := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Principal"},
	}).Handler(mux)

	h2s := &http2.Server{}
	return h2c.NewHandler(corsWrapped, h2s)
}
