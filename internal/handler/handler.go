package handler

import (
	"net/http"

	"github.com/atlekbai/querykit/internal/schema"
)

type Handler struct {
	registry *schema.Registry
}

func New(registry *schema.Registry) *Handler {
	return &Handler{registry: registry}
}

// Register mounts the REST routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /models", h.ListModels)
	mux.HandleFunc("GET /models/{name}", h.GetModel)
}

type modelResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Table      string `json:"table"`
	PrimaryKey string `json:"primary_key,omitempty"`
}

func toModelResponse(def schema.TableDef) modelResponse {
	return modelResponse{
		ID:         def.ID.String(),
		Name:       def.Name,
		Table:      def.Table,
		PrimaryKey: def.PrimaryKey,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "models": h.registry.Count()})
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	defs := h.registry.List()
	out := make([]modelResponse, len(defs))
	for i, def := range defs {
		out[i] = toModelResponse(def)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	def, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Model not found", name)
		return
	}
	writeJSON(w, r, http.StatusOK, toModelResponse(def))
}
