/*Package server provides the read-only diagnostics HTTP sidecar irpcd
exposes alongside the RPC listener (spec.md §9 supplemented features:
"a diagnostics endpoint that cannot invoke USB operations"). It keeps the
teacher repository's RouteTable/Server/Mainframe shape for organizing
many named route groups under one mux, rebuilt on go-chi instead of the
default net/http mux the teacher used, since chi is what the rest of the
example pack reaches for when it needs a router.
*/
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi"
)

// RouteTable maps a path suffix to its handler, same shape the teacher
// repository used for one hardware object's HTTP surface.
type RouteTable map[string]http.HandlerFunc

// ListEndpoints lists the endpoints in a RouteTable (the keys).
func (rt RouteTable) ListEndpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k)
	}
	return routes
}

// A Server holds a RouteTable and mounts it under URLStem.
type Server struct {
	RouteTable RouteTable
	URLStem    string
}

// BindRoutes mounts the route table's handlers on r under s.URLStem,
// plus a "list-of-routes" introspection endpoint the teacher's Server
// always added.
func (s *Server) BindRoutes(r chi.Router) {
	r.Route("/"+s.URLStem, func(sub chi.Router) {
		for str, meth := range s.RouteTable {
			sub.Get("/"+str, meth)
		}
		sub.Get("/list-of-routes", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, s.ListRoutes())
		})
	})
}

// ListRoutes returns every route bound by this server.
func (s *Server) ListRoutes() []string {
	return s.RouteTable.ListEndpoints()
}

// Mainframe is the top-level diagnostics mux: many named Servers mounted
// under one chi.Router, plus a combined route graph.
type Mainframe struct {
	router chi.Router
	nodes  []*Server
}

// NewMainframe returns a Mainframe ready to accept Add calls.
func NewMainframe() *Mainframe {
	return &Mainframe{router: chi.NewRouter()}
}

// Add adds a new named route group to the mainframe.
func (m *Mainframe) Add(s *Server) {
	m.nodes = append(m.nodes, s)
}

// RouteGraph returns a non-recursive, depth-1 map of URL stems and their
// endpoints.
func (m *Mainframe) RouteGraph() map[string][]string {
	routes := make(map[string][]string)
	for _, s := range m.nodes {
		routes[s.URLStem] = s.ListRoutes()
	}
	return routes
}

func (m *Mainframe) graphHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, m.RouteGraph())
}

// BindRoutes binds every member server's routes plus a top-level
// route-graph endpoint, and returns the assembled router.
func (m *Mainframe) BindRoutes() http.Handler {
	for _, s := range m.nodes {
		s.BindRoutes(m.router)
	}
	m.router.Get("/route-graph", m.graphHandler)
	return m.router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: error encoding json response: %v", err)
	}
}
