package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkhaul/internal/api"
	"linkhaul/internal/config"
	"linkhaul/internal/containers"
	"linkhaul/internal/downloads"
	"linkhaul/internal/logging"
	"linkhaul/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(authMiddleware(cfg.Paths.APIToken))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)

		r.Route("/containers", func(r chi.Router) {
			r.Get("/", srv.handleListContainers)
			r.Post("/", srv.handleCreateContainer)
			r.Post("/manual", srv.handleCreateManual)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.handleGetContainer)
				r.Delete("/", srv.handleDeleteContainer)
				r.Post("/reconcile", srv.handleReconcileContainer)
			})
		})

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/", srv.handleListDownloads)
			r.Post("/", srv.handleSubmitDownload)
			r.Get("/stats", srv.handleStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.handleGetDownload)
				r.Delete("/", srv.handleDeleteDownload)
				r.Post("/pause", srv.handleControl(d.downloads.Pause))
				r.Post("/resume", srv.handleControl(d.downloads.Resume))
				r.Post("/cancel", srv.handleControl(d.downloads.Cancel))
				r.Post("/retry", srv.handleRetry)
			})
		})
	})

	srv.handler = r
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Container creation fetches remote pages before replying.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.server = nil
	s.listener = nil
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleListContainers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	statuses, err := api.ParseContainerStatuses(query["status"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := pagination(query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.daemon.containers.List(r.Context(), containers.ListOptions{Statuses: statuses, Limit: limit, Offset: offset})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ContainerListResponse{Containers: api.FromContainers(rows)})
}

func (s *apiServer) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req api.CreateContainerRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.daemon.containers.CreateFromURL(r.Context(), containers.CreateRequest{
		URL:          req.URL,
		Password:     req.Password,
		Name:         req.Name,
		Folder:       req.Folder,
		CredentialID: req.CredentialID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ContainerResponse{Container: api.FromContainer(c)})
}

func (s *apiServer) handleCreateManual(w http.ResponseWriter, r *http.Request) {
	var req api.ManualContainerRequest
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.daemon.containers.CreateManual(r.Context(), containers.ManualRequest{
		Name:         req.Name,
		URLs:         req.URLs,
		Folder:       req.Folder,
		Password:     req.Password,
		CredentialID: req.CredentialID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ContainerResponse{Container: api.FromContainer(c)})
}

func (s *apiServer) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.daemon.containers.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeContainerWithMembers(w, r, http.StatusOK, c.ID, api.FromContainer(c))
}

func (s *apiServer) handleReconcileContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.daemon.containers.Refresh(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeContainerWithMembers(w, r, http.StatusOK, c.ID, api.FromContainer(c))
}

func (s *apiServer) writeContainerWithMembers(w http.ResponseWriter, r *http.Request, status int, id int64, dto api.Container) {
	members, err := s.daemon.containers.Members(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	dto.Downloads = api.FromDownloads(members)
	s.writeJSON(w, status, api.ContainerResponse{Container: dto})
}

func (s *apiServer) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.containers.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	statuses, err := api.ParseDownloadStatuses(query["status"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := pagination(query)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := downloads.ListOptions{
		Statuses:      statuses,
		Limit:         limit,
		Offset:        offset,
		SkipReconcile: query.Get("reconcile") == "false",
	}
	if raw := strings.TrimSpace(query.Get("container")); raw != "" {
		containerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid container id")
			return
		}
		opts.ContainerID = &containerID
	}
	rows, err := s.daemon.downloads.List(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DownloadListResponse{Downloads: api.FromDownloads(rows)})
}

func (s *apiServer) handleSubmitDownload(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitDownloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.daemon.downloads.Submit(r.Context(), downloads.SubmitRequest{
		URL:          req.URL,
		Filename:     req.Filename,
		ContainerID:  req.ContainerID,
		CredentialID: req.CredentialID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.DownloadResponse{Download: api.FromDownload(d)})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.downloads.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	d, err := s.daemon.downloads.Reconcile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DownloadResponse{Download: api.FromDownload(d)})
}

func (s *apiServer) handleDeleteDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.downloads.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleControl(action func(context.Context, int64) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r)
		if !ok {
			return
		}
		applied, err := action(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		d, err := s.daemon.downloads.Get(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ActionResponse{ID: id, Applied: applied, Download: api.FromDownload(d)})
	}
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	d, err := s.daemon.downloads.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DownloadResponse{Download: api.FromDownload(d)})
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pagination(query map[string][]string) (int, int, error) {
	parse := func(key string) (int, error) {
		values := query[key]
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %s", key)
		}
		return n, nil
	}
	limit, err := parse("limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := parse("offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func statusForError(err error) int {
	switch services.ErrorKind(err) {
	case "not_found":
		return http.StatusNotFound
	case "validation":
		return http.StatusBadRequest
	case "conflict":
		return http.StatusConflict
	case "upstream":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: services.ErrorKind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
