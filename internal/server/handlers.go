package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/config"
	"github.com/wcatz/dashboard-builder/internal/dashboard"
	"github.com/wcatz/dashboard-builder/internal/layout"
)

type errorResponse struct {
	Error string `json:"error"`
}

type widgetResponse struct {
	WidgetID  string             `json:"widgetId"`
	Dashboard dashboard.Snapshot `json:"dashboard"`
}

type kindInfo struct {
	Type     dashboard.Kind   `json:"type"`
	Width    int              `json:"w"`
	Height   int              `json:"h"`
	Defaults dashboard.Config `json:"defaults"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the model's error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrValidation), errors.Is(err, dashboard.ErrMalformedDocument):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrInvariantViolation):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", dashboard.ErrValidation, err)
	}
	return data, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", dashboard.ErrValidation, err)
	}
	return nil
}

func (s *Server) view(d dashboard.Dashboard) dashboard.Snapshot {
	return dashboard.ToSnapshot(d, s.ws.Model().Columns())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":     "ok",
		"dashboards": len(s.ws.List(r.Context())),
	}
	if s.mirror != nil {
		resp["mirror"] = s.mirror.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	specs := s.ws.Model().Kinds.Kinds()
	out := make([]kindInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, kindInfo{
			Type:     spec.Kind,
			Width:    spec.DefaultWidth,
			Height:   spec.DefaultHeight,
			Defaults: spec.NewConfig(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.List(r.Context()))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.ws.Create(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(d))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := s.ws.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

// handleUpdate renames a dashboard and/or changes its icon.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
		Icon *string `json:"icon"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.ws.Update(r.Context(), r.PathValue("id"), req.Name, req.Icon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var docs []dashboard.RectDoc
	if err := decodeBody(w, r, &docs); err != nil {
		s.writeError(w, r, err)
		return
	}
	rects := make([]layout.Rect, len(docs))
	for i, d := range docs {
		rects[i] = layout.Rect{ID: d.I, X: d.X, Y: d.Y, W: d.W, H: d.H}
	}
	d, err := s.ws.ApplyLayout(r.Context(), r.PathValue("id"), rects)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ws.Export(r.Context(), r.PathValue("id"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(doc.Name)))
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.ws.Import(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(d))
}

func (s *Server) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type dashboard.Kind  `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := s.ws.Model().Kinds.DecodeConfig(req.Type, req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, wid, err := s.ws.AddWidget(r.Context(), r.PathValue("id"), req.Type, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, widgetResponse{WidgetID: wid, Dashboard: s.view(d)})
}

// handleEditWidget replaces a widget's config with the request body.
func (s *Server) handleEditWidget(w http.ResponseWriter, r *http.Request) {
	id, wid := r.PathValue("id"), r.PathValue("wid")
	data, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.ws.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	widget, ok := d.Widget(wid)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: widget %s", dashboard.ErrNotFound, wid))
		return
	}
	cfg, err := s.ws.Model().Kinds.DecodeConfig(widget.Kind, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err = s.ws.UpdateWidgetConfig(r.Context(), id, wid, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

func (s *Server) handleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	d, err := s.ws.RemoveWidget(r.Context(), r.PathValue("id"), r.PathValue("wid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(d))
}

func (s *Server) handleDuplicateWidget(w http.ResponseWriter, r *http.Request) {
	d, wid, err := s.ws.DuplicateWidget(r.Context(), r.PathValue("id"), r.PathValue("wid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, widgetResponse{WidgetID: wid, Dashboard: s.view(d)})
}

// handleConfigValidate checks a YAML configuration without applying it.
func (s *Server) handleConfigValidate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty content"})
		return
	}
	cfg, err := config.LoadFromBytes(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	dashboards, _ := cfg.GetDashboards("")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":      true,
		"dashboards": len(dashboards),
		"profiles":   len(cfg.Profiles),
		"backend":    cfg.Store.Backend,
	})
}

// exportFilename turns a dashboard name into a safe download name.
func exportFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == '\x00' || r < ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		clean = "dashboard"
	}
	return clean + ".json"
}
