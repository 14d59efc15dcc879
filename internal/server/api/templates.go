package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultTolerance is used when a template is created without one.
const DefaultTolerance = 0.15

// TemplateHandler serves /api/templates.
type TemplateHandler struct {
	store    *store.Store
	onChange func()
}

// NewTemplateHandler creates a TemplateHandler. onChange, if set, runs after
// every successful write so the live classifier can reload.
func NewTemplateHandler(s *store.Store, onChange func()) *TemplateHandler {
	if onChange == nil {
		onChange = func() {}
	}
	return &TemplateHandler{store: s, onChange: onChange}
}

// ServeHTTP routes /api/templates and /api/templates/{id}.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := splitPath(r.URL.Path, "/api/templates")

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

type templateRequest struct {
	Name      string             `json:"name" validate:"required,max=64"`
	Label     gesture.Label      `json:"label"`
	Tolerance float64            `json:"tolerance" validate:"gte=0,lte=10"`
	Landmarks []landmark.Point3D `json:"landmarks" validate:"omitempty,len=21"`
}

type templateResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Label     gesture.Label      `json:"label"`
	Tolerance float64            `json:"tolerance"`
	Landmarks []landmark.Point3D `json:"landmarks,omitempty"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

func toTemplateResponse(t *store.Template) templateResponse {
	return templateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Label:     t.Label,
		Tolerance: t.Tolerance,
		Landmarks: t.Landmarks,
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}
}

// normalizeLandmarks maps raw detector coordinates into the wrist-relative
// frame the classifier compares against.
func normalizeLandmarks(points []landmark.Point3D) []landmark.Point3D {
	if len(points) != landmark.NumLandmarks {
		return nil
	}
	var hand landmark.HandLandmarks
	copy(hand.Points[:], points)
	norm := hand.Normalize()
	out := make([]landmark.Point3D, landmark.NumLandmarks)
	copy(out, norm.Points[:])
	return out
}

func (h *TemplateHandler) list(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.Templates().List(r.URL.Query().Get("landmarks") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	response := listTemplatesResponse{Templates: make([]templateResponse, 0, len(templates))}
	for _, t := range templates {
		response.Templates = append(response.Templates, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *TemplateHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Landmarks) == 0 {
		writeError(w, http.StatusBadRequest, "landmarks are required")
		return
	}

	tolerance := req.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	t := &store.Template{
		Name:      req.Name,
		Label:     req.Label,
		Tolerance: tolerance,
		Landmarks: normalizeLandmarks(req.Landmarks),
	}
	if err := h.store.Templates().Create(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	h.onChange()
	writeJSON(w, http.StatusCreated, toTemplateResponse(t))
}

func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}

	var req templateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t.Name = req.Name
	t.Label = req.Label
	if req.Tolerance != 0 {
		t.Tolerance = req.Tolerance
	}
	if len(req.Landmarks) > 0 {
		t.Landmarks = normalizeLandmarks(req.Landmarks)
	} else {
		t.Landmarks = nil
	}

	if err := h.store.Templates().Update(t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}

	h.onChange()
	updated, err := h.store.Templates().GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(updated))
}

func (h *TemplateHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	h.onChange()
	w.WriteHeader(http.StatusNoContent)
}
