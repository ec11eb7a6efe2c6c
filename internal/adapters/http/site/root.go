// Package site handles requests outside the API and docs routes.
package site

import (
	"context"
	"net/http"
)

// DocsPath is where the root path redirects.
const DocsPath = "/api-docs"

// Register attaches the root handler to mux. It must be registered after
// the more specific routes, which the mux prefers regardless of order.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/", NewRootHandler().HandleRoot)
}

// RootHandler handles root path requests.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot sends GET / to the API docs and answers 404 for everything else.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, DocsPath, http.StatusFound)
}
