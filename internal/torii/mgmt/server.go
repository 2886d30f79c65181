// Package mgmt exposes the module lifecycle and registry capabilities over
// the agent's management HTTP API.
package mgmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bdobrica/torii/internal/torii/runtime"
)

// maxBodyBytes bounds management request bodies; module specs are small.
const maxBodyBytes = 1 << 20

// Server maps management endpoints onto the runtime and registry
// capabilities. It owns no state of its own; every request is an
// independent pass-through to the engine.
type Server struct {
	runtime runtime.ModuleRuntime
	log     zerolog.Logger
}

// New creates a management Server over the given runtime.
func New(rt runtime.ModuleRuntime, log zerolog.Logger) *Server {
	return &Server{runtime: rt, log: log}
}

// Handler returns the management API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /modules", s.handleListModules)
	mux.HandleFunc("POST /modules", s.handleCreateModule)
	mux.HandleFunc("POST /modules/{name}/start", s.handleStartModule)
	mux.HandleFunc("POST /modules/{name}/stop", s.handleStopModule)
	mux.HandleFunc("POST /modules/{name}/restart", s.handleRestartModule)
	mux.HandleFunc("DELETE /modules/{name}", s.handleRemoveModule)
	mux.HandleFunc("GET /modules/{name}/logs", s.handleModuleLogs)
	mux.HandleFunc("POST /images/pull", s.handlePullImage)
	mux.HandleFunc("DELETE /images/{name...}", s.handleRemoveImage)
	mux.HandleFunc("GET /systeminfo", s.handleSystemInfo)
	return s.withRequestID(mux)
}

// withRequestID tags every request with a correlation ID, echoed in the
// X-Request-ID response header and attached to the request log line.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("management request")
	})
}

// moduleDetails is the JSON shape of one module in list responses.
type moduleDetails struct {
	Name   string               `json:"name"`
	Type   string               `json:"type"`
	Config runtime.EngineConfig `json:"config"`
	Status runtime.RuntimeState `json:"status"`
}

type listModulesResponse struct {
	Modules []moduleDetails `json:"modules"`
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	resp := listModulesResponse{Modules: []moduleDetails{}}
	for detail := range s.runtime.ListWithDetails(r.Context()) {
		if detail.Err != nil {
			s.writeError(w, r, detail.Err)
			return
		}
		resp.Modules = append(resp.Modules, moduleDetails{
			Name:   detail.Module.Name(),
			Type:   detail.Module.Type(),
			Config: detail.Module.Config(),
			Status: detail.State,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if err := compiledModuleSpecSchema.Validate(doc); err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("invalid module spec: %v", err))
		return
	}

	var spec runtime.ModuleSpec
	if err := json.Unmarshal(body, &spec); err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("invalid module spec: %v", err))
		return
	}

	if err := s.runtime.Create(r.Context(), spec); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, spec)
}

func (s *Server) handleStartModule(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Start(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopModule(w http.ResponseWriter, r *http.Request) {
	var grace *time.Duration
	if raw := r.URL.Query().Get("grace"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("invalid grace duration %q", raw))
			return
		}
		grace = &d
	}
	if err := s.runtime.Stop(r.Context(), r.PathValue("name"), grace); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestartModule(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Restart(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveModule(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Remove(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleModuleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	options := runtime.LogOptions{
		Follow: q.Get("follow") == "true",
		Tail:   q.Get("tail"),
	}

	rc, err := s.runtime.Logs(r.Context(), r.PathValue("name"), options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	streamChunks(w, rc)
}

// streamChunks copies the log stream to the response, flushing per chunk so
// followed logs reach the caller as they are produced.
func streamChunks(w http.ResponseWriter, rc io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handlePullImage(w http.ResponseWriter, r *http.Request) {
	var cfg runtime.EngineConfig
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&cfg); err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("invalid engine config: %v", err))
		return
	}
	if cfg.Image == "" {
		s.writeStatus(w, http.StatusBadRequest, "image is required")
		return
	}
	if err := s.runtime.Registry().Pull(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Registry().Remove(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.runtime.SystemInfo(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// --- error and response plumbing ---

type errorResponse struct {
	Message string `json:"message"`
}

// writeError maps the runtime error taxonomy onto HTTP statuses: validation
// failures are the caller's fault, not-found is a genuine 404 at this
// boundary, everything else is the engine's problem.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runtime.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, runtime.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Msg("management request failed")
	}
	writeJSON(w, status, errorResponse{Message: err.Error()})
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
