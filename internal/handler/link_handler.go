package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Siddarth2230/serial-tags/internal/logging"
	"github.com/Siddarth2230/serial-tags/internal/models"
	"github.com/Siddarth2230/serial-tags/internal/service"
)

// LinkService is the part of *service.LinkService the handlers use.
type LinkService interface {
	Shorten(ctx context.Context, req models.ShortenRequest) (*models.ShortenResponse, error)
	Resolve(ctx context.Context, tag string) (*models.Link, error)
	Delete(ctx context.Context, tag string) error
	Inspect(tag string) (*models.TagInfo, error)
	EncodeSerial(serial int64) (*models.TagInfo, error)
}

type LinkHandler struct {
	service LinkService
}

func NewLinkHandler(svc LinkService) *LinkHandler {
	return &LinkHandler{service: svc}
}

// Register mounts the routes on r. The catch-all /{tag} routes go last.
func (h *LinkHandler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/shorten", h.Shorten).Methods(http.MethodPost)
	r.HandleFunc("/api/tags/{tag}", h.InspectTag).Methods(http.MethodGet)
	r.HandleFunc("/api/serials/{serial}", h.EncodeSerial).Methods(http.MethodGet)
	r.HandleFunc("/{tag}", h.Redirect).Methods(http.MethodGet)
	r.HandleFunc("/{tag}", h.Delete).Methods(http.MethodDelete)
}

// POST /shorten
func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ShortenRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request payload")
		return
	}

	resp, err := h.service.Shorten(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidTag),
			errors.Is(err, service.ErrInvalidTTL):
			writeError(ctx, w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTagTaken),
			errors.Is(err, service.ErrHashConflict):
			writeError(ctx, w, http.StatusConflict, err.Error())
		default:
			internalError(ctx, w, "shorten", err)
		}
		return
	}

	writeJSON(ctx, w, http.StatusCreated, resp)
}

// GET /{tag} - redirect to the target
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag := mux.Vars(r)["tag"]

	link, err := h.service.Resolve(ctx, tag)
	if err != nil {
		writeLookupError(ctx, w, "resolve", err)
		return
	}
	http.Redirect(w, r, link.Target, http.StatusFound)
}

// DELETE /{tag}
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tag := mux.Vars(r)["tag"]

	if err := h.service.Delete(ctx, tag); err != nil {
		writeLookupError(ctx, w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/tags/{tag}
func (h *LinkHandler) InspectTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.service.Inspect(mux.Vars(r)["tag"])
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, w, http.StatusOK, info)
}

// GET /api/serials/{serial}
func (h *LinkHandler) EncodeSerial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serial, err := strconv.ParseInt(mux.Vars(r)["serial"], 10, 64)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "serial must be a 64-bit integer")
		return
	}
	info, err := h.service.EncodeSerial(serial)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, w, http.StatusOK, info)
}

// GET /healthz
func (h *LinkHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeLookupError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTag):
		writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "tag not found")
	case errors.Is(err, service.ErrExpired):
		writeError(ctx, w, http.StatusGone, "tag expired")
	default:
		internalError(ctx, w, op, err)
	}
}

func internalError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger := logging.Ctx(ctx)
	logger.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(ctx, w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).Msg("writeJSON encode error")
	}
}

// writeError writes { "error": "msg" }
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, map[string]string{"error": msg})
}
