package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/irpcd/rpcserver"
	"github.com/nasa-jpl/irpcd/server"
	"github.com/nasa-jpl/irpcd/server/middleware/locker"
)

// buildDiagMux assembles the read-only diagnostics sidecar: /healthz for
// a liveness probe, /ops/snapshot for the server's state-machine
// snapshot, plus /ops/list-of-routes and /route-graph.
// Every route is GET-only, enforced by locker.Check, so the sidecar can
// never be used to drive a USB operation (spec.md §9 supplemented
// features).
func buildDiagMux(srv *rpcserver.Server) http.Handler {
	mf := server.NewMainframe()
	mf.Add(&server.Server{
		URLStem: "ops",
		RouteTable: server.RouteTable{
			"snapshot": func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(srv.Snapshot())
			},
		},
	})

	root := chi.NewRouter()
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	root.Mount("/", mf.BindRoutes())

	gate := locker.New()
	return gate.Check(root)
}
