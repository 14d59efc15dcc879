package api

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginLookup resolves plugins named by a binding.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// BindingHandler serves /api/bindings.
type BindingHandler struct {
	store    *store.Store
	plugins  PluginLookup
	onChange func()
}

// NewBindingHandler creates a BindingHandler. When plugins is nil the plugin
// and action names are not checked. onChange, if set, runs after every
// successful write.
func NewBindingHandler(s *store.Store, plugins PluginLookup, onChange func()) *BindingHandler {
	if onChange == nil {
		onChange = func() {}
	}
	return &BindingHandler{store: s, plugins: plugins, onChange: onChange}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := splitPath(r.URL.Path, "/api/bindings")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type bindingRequest struct {
	Label   gesture.Label       `json:"label"`
	Plugin  string              `json:"plugin" validate:"required"`
	Action  string              `json:"action" validate:"required"`
	Config  jsoniter.RawMessage `json:"config"`
	Enabled *bool               `json:"enabled"`
}

type bindingResponse struct {
	ID        string              `json:"id"`
	Label     gesture.Label       `json:"label"`
	Plugin    string              `json:"plugin"`
	Action    string              `json:"action"`
	Config    jsoniter.RawMessage `json:"config"`
	Enabled   bool                `json:"enabled"`
	CreatedAt string              `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	config := []byte(b.Config)
	if len(config) == 0 {
		config = []byte("{}")
	}
	return bindingResponse{
		ID:        b.ID,
		Label:     b.Label,
		Plugin:    b.PluginName,
		Action:    b.ActionName,
		Config:    config,
		Enabled:   b.Enabled,
		CreatedAt: b.CreatedAt.Format(timeFormat),
	}
}

// check rejects labels the dispatcher already acts on and unknown plugin
// actions.
func (h *BindingHandler) check(req *bindingRequest) error {
	if dispatch.Consumes(req.Label) {
		return fmt.Errorf("%s controls the pointer and cannot be bound", req.Label)
	}
	if h.plugins == nil {
		return nil
	}
	p, err := h.plugins.Get(req.Plugin)
	if err != nil {
		return fmt.Errorf("unknown plugin %q", req.Plugin)
	}
	if !p.HasAction(req.Action) {
		return fmt.Errorf("plugin %q has no action %q", req.Plugin, req.Action)
	}
	return nil
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.store.Bindings().GetByLabel(req.Label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check binding")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s is already bound", req.Label))
		return
	}

	b := &store.Binding{
		Label:      req.Label,
		PluginName: req.Plugin,
		ActionName: req.Action,
		Config:     []byte(req.Config),
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	h.onChange()

	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.Label = req.Label
	b.PluginName = req.Plugin
	b.ActionName = req.Action
	if len(req.Config) > 0 {
		b.Config = []byte(req.Config)
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeError(w, http.StatusConflict, "Failed to update binding")
		return
	}
	h.onChange()
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}
	h.onChange()
	w.WriteHeader(http.StatusNoContent)
}
