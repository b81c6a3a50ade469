package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trackops/exportd/internal/domain"
	"github.com/trackops/exportd/internal/export"
)

// Handler exposes the export service over HTTP. Identity is resolved by the
// upstream gateway and forwarded in headers; auth itself lives elsewhere.
type Handler struct {
	svc       *export.Service
	sweeper   *export.Sweeper
	inspector *export.Inspector
	log       *zap.Logger
}

func New(svc *export.Service, sweeper *export.Sweeper, inspector *export.Inspector, log *zap.Logger) *Handler {
	return &Handler{svc: svc, sweeper: sweeper, inspector: inspector, log: log.Named("api")}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1/exports", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/stats", h.stats)
		r.Get("/storage", h.storage)
		r.Post("/cleanup", h.cleanup)
		r.Get("/{id}", h.get)
		r.Get("/{id}/download", h.download)
		r.Delete("/{id}", h.cancel)
	})
	return r
}

func actorFrom(r *http.Request) export.Actor {
	return export.Actor{
		UserID: r.Header.Get("X-User-ID"),
		Role:   r.Header.Get("X-User-Role"),
	}
}

type createRequest struct {
	DatasetType domain.DatasetType  `json:"dataset_type"`
	Config      domain.ExportConfig `json:"config"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	sum, err := h.svc.Submit(r.Context(), actorFrom(r).UserID, req.DatasetType, req.Config)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sum)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	var status *domain.Status
	if v := q.Get("status"); v != "" {
		st := domain.Status(v)
		status = &st
	}
	jobs, total, err := h.svc.List(r.Context(), actorFrom(r), q.Get("owner"), page, limit, status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Download(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.FileName))
	http.ServeFile(w, r, info.Path)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Stats(r.Context(), actorFrom(r), r.URL.Query().Get("owner"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handler) storage(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).Admin() {
		writeError(w, http.StatusForbidden, "administrator only")
		return
	}
	st, err := h.inspector.Stats()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).Admin() {
		writeError(w, http.StatusForbidden, "administrator only")
		return
	}
	// detached: a dropped admin connection must not truncate the sweep
	writeJSON(w, http.StatusOK, h.sweeper.Run(context.WithoutCancel(r.Context())))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrNotComplete), errors.Is(err, domain.ErrNotCancelable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
