package server

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/kinds", s.handleKinds)

	// Dashboards
	s.mux.HandleFunc("GET /api/dashboards", s.handleList)
	s.mux.HandleFunc("POST /api/dashboards", s.handleCreate)
	s.mux.HandleFunc("GET /api/dashboards/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /api/dashboards/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/dashboards/{id}", s.handleDelete)
	s.mux.HandleFunc("PUT /api/dashboards/{id}/layout", s.handleLayout)
	s.mux.HandleFunc("GET /api/dashboards/{id}/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)

	// Widgets
	s.mux.HandleFunc("POST /api/dashboards/{id}/widgets", s.handleAddWidget)
	s.mux.HandleFunc("PUT /api/dashboards/{id}/widgets/{wid}", s.handleEditWidget)
	s.mux.HandleFunc("DELETE /api/dashboards/{id}/widgets/{wid}", s.handleRemoveWidget)
	s.mux.HandleFunc("POST /api/dashboards/{id}/widgets/{wid}/duplicate", s.handleDuplicateWidget)

	s.mux.HandleFunc("POST /api/config/validate", s.handleConfigValidate)
}
