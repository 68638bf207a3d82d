package api

import (
	"net/http"

	"github.com/okian/tdoa/internal/domain/types"
)

type nodeResponse struct {
	ID        int     `json:"id"`
	Key       string  `json:"key"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NodesHandler serves the node table.
type NodesHandler struct {
	deps Dependencies
}

// NewNodesHandler creates a new nodes handler.
func NewNodesHandler(deps Dependencies) *NodesHandler {
	return &NodesHandler{deps: deps}
}

// HandleGetNodes handles GET /nodes.
func (h *NodesHandler) HandleGetNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := h.deps.Nodes()
	out := make([]nodeResponse, len(nodes))
	for i, n := range nodes {
		out[i] = nodeResponse{ID: int(n.ID), Key: types.NodeKey(n.ID), Latitude: n.Latitude, Longitude: n.Longitude}
	}
	writeJSON(w, http.StatusOK, out)
}
