// Package server exposes the pipeline over HTTP for batch integration.
// Inputs are referenced by path; the server never receives DICOM bytes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"lesion-report/internal/config"
	"lesion-report/internal/errs"
	"lesion-report/internal/pipeline"
)

// Server wraps the pipeline runner behind a small JSON API.
type Server struct {
	cfg    *config.Config
	log    *logrus.Logger
	runner *pipeline.Runner
	router *mux.Router
}

// reportRequest is the body of POST /api/v1/report.
type reportRequest struct {
	DicomPath string `json:"dicom_path"`
	ExcelPath string `json:"excel_path"`
	CaseID    string `json:"case_id"`
	OutDir    string `json:"out_dir"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// New builds a Server and its routes.
func New(cfg *config.Config, log *logrus.Logger, runner *pipeline.Runner) *Server {
	s := &Server{cfg: cfg, log: log, runner: runner, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
}

// Handler returns the root handler, exported for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.ServerHost, s.cfg.ServerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", addr).Info("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := s.log.WithField("request_id", requestID)

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", RequestID: requestID})
		return
	}
	if req.DicomPath == "" && req.ExcelPath == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "at least one of dicom_path or excel_path is required",
			RequestID: requestID,
		})
		return
	}

	out, err := s.runner.Run(r.Context(), pipeline.Options{
		DicomPath: req.DicomPath,
		ExcelPath: req.ExcelPath,
		CaseID:    req.CaseID,
		OutDir:    req.OutDir,
	})
	if err != nil {
		status := statusFor(err)
		log.WithError(err).WithField("status", status).Error("pipeline run failed")
		writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: requestID})
		return
	}

	log.WithField("case_id", out.Analysis.CaseID).Info("report generated")
	writeJSON(w, http.StatusOK, out.Analysis)
}

// statusFor maps pipeline errors onto HTTP statuses. Schema validation of
// our own output is a server-side defect, not a client error.
func statusFor(err error) int {
	var nf *errs.NotFoundError
	var rejected *errs.RejectedModalityError
	var schemaErr *errs.SchemaError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &rejected), errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
