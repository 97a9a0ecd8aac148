package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"framestack/internal/pipeline"
	"framestack/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Jobs is the part of the pipeline the HTTP API drives.
type Jobs interface {
	Submit(job pipeline.Job) error
	Cancel(id string) error
	Progress(id string) (current, total int, err error)
	Subscribe() (<-chan pipeline.Result, func())
}

// Server exposes the alignment pipeline over HTTP.
type Server struct {
	addr   string
	store  *storage.Store
	jobs   Jobs
	log    *slog.Logger
	hub    *hub
	server *http.Server
}

// NewServer creates a server for the given pipeline and store.
func NewServer(addr string, store *storage.Store, jobs Jobs, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr:  addr,
		store: store,
		jobs:  jobs,
		log:   log,
		hub:   newHub(log),
	}
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)
	go s.forwardResults(ctx)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/jobs", s.handleSubmit).Methods("POST")
	r.HandleFunc("/jobs/{id}", s.handleJob).Methods("GET")
	r.HandleFunc("/jobs/{id}", s.handleCancel).Methods("DELETE")
	r.HandleFunc("/jobs/{id}/positions", s.handlePositions).Methods("GET")
	r.HandleFunc("/stream", s.handleJobStream).Methods("GET")
	r.HandleFunc("/ws", s.hub.serveWS).Methods("GET")
	return r
}

// resultMessage is the wire form of a pipeline.Result.
type resultMessage struct {
	Job   pipeline.Job   `json:"job"`
	Error string         `json:"error,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func newResultMessage(res pipeline.Result) resultMessage {
	msg := resultMessage{Job: res.Job, Meta: res.Meta}
	if res.Error != nil {
		msg.Error = res.Error.Error()
	}
	return msg
}

func (s *Server) forwardResults(ctx context.Context) {
	results, unsubscribe := s.jobs.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			payload, err := json.Marshal(newResultMessage(res))
			if err != nil {
				s.log.Warn("failed to encode result", "job", res.Job.ID, "error", err)
				continue
			}
			s.hub.publish(payload)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentJobs(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type submitRequest struct {
	InputPath string         `json:"input_path"`
	Images    []string       `json:"images"`
	Output    string         `json:"output"`
	Options   map[string]any `json:"options"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.InputPath == "" && len(req.Images) == 0 {
		http.Error(w, "input_path or images is required", http.StatusBadRequest)
		return
	}
	if req.Options == nil {
		req.Options = map[string]any{}
	}
	if len(req.Images) > 0 {
		req.Options["images"] = req.Images
	}

	job := pipeline.Job{
		ID:        uuid.NewString(),
		Type:      pipeline.JobAlign,
		InputPath: req.InputPath,
		Output:    req.Output,
		Options:   req.Options,
	}
	if err := s.jobs.Submit(job); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("job submitted", "id", job.ID, "input", job.InputPath)
	writeJSON(w, http.StatusAccepted, job)
}

type jobStatus struct {
	storage.JobRecord
	Progress *progress `json:"progress,omitempty"`
}

type progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.Job(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := jobStatus{JobRecord: rec}
	if current, total, err := s.jobs.Progress(id); err == nil {
		status.Progress = &progress{Current: current, Total: total}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.jobs.Cancel(id); err != nil {
		if errors.Is(err, pipeline.ErrUnknownJob) {
			http.Error(w, "job not running", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.Positions(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []storage.StillPosition{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	resCh, unsubscribe := s.jobs.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(newResultMessage(res))
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}
