package inbound

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type CallbackService interface {
	HandleCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error)
}

type ErrorMapper func(err error) *goerrors.Error

// CallbackHandler serves the provider redirect URI. Success writes the page
// returned by the service; failures are written as a JSON go-errors envelope
// with the mapped HTTP status.
type CallbackHandler struct {
	service  CallbackService
	mapError ErrorMapper
	logger   glog.Logger
}

type Option func(*CallbackHandler)

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(h *CallbackHandler) {
		if mapper != nil {
			h.mapError = mapper
		}
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(h *CallbackHandler) {
		h.logger = logger
	}
}

func NewCallbackHandler(service CallbackService, opts ...Option) *CallbackHandler {
	h := &CallbackHandler{
		service:  service,
		mapError: core.MapError,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.logger = glog.Ensure(h.logger)
	return h
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, inboundInternal("inbound: callback service is required"))
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, methodNotAllowed(r.Method))
		return
	}

	resp, err := h.service.HandleCallback(r.Context(), core.CallbackRequestFromHTTP(r))
	if err != nil {
		mapped := h.mapError(err)
		if mapped == nil {
			mapped = core.MapError(err)
		}
		h.logger.Warn("oauth callback rejected",
			"status", mapped.Code,
			"text_code", mapped.TextCode,
			"error", err.Error(),
		)
		writeError(w, mapped)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, err *goerrors.Error) {
	status := err.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newErrorBody(err))
}

var _ http.Handler = (*CallbackHandler)(nil)
