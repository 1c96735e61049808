// Package sink is a minimal receiver for mirrored dashboard snapshots. It
// stores the last document it was sent in a single JSON file.
package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/server"
)

const maxBodyBytes = 4 << 20

// Sink writes every received document to path.
type Sink struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
	mux    *http.ServeMux
}

// New returns a sink writing to path.
func New(path string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink{path: path, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/jsonModel", s.handleWrite)
	s.mux.HandleFunc("PUT /api/jsonModel", s.handleWrite)
	s.mux.HandleFunc("GET /api/jsonModel", s.handleRead)
	return s
}

// Handler returns the sink with the same CORS and logging middleware as the
// API server.
func (s *Sink) Handler() http.Handler {
	return server.LogRequests(s.logger, server.CORS(s.mux))
}

func (s *Sink) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := s.write(pretty.Bytes()); err != nil {
		s.logger.Error("writing model file", zap.String("path", s.path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.logger.Info("model file updated", zap.String("path", s.path), zap.Int("bytes", pretty.Len()))
	w.Write([]byte("File updated successfully"))
}

func (s *Sink) handleRead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("reading model file", zap.String("path", s.path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// write replaces the file atomically so a reader never sees half a document.
func (s *Sink) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-model-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
