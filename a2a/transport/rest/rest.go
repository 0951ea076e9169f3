// Package rest implements the parallel REST surface described by spec.md
// section 6: a thin net/http.ServeMux binding over the same
// manager.TaskManager methods the jsonrpc transport calls, so there is no
// duplicated business logic between the two surfaces.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/manager"
	"github.com/a2aserver/a2a-core/a2a/telemetry"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// Handler serves the REST surface. Base is the path prefix preceding
// "/v1/...", for example "/a2a" to match spec.md's "{base}/v1/...".
type Handler struct {
	mgr  *manager.TaskManager
	tel  telemetry.Telemetry
	mux  *http.ServeMux
	base string
}

// New constructs a Handler over mgr, mounted under base + "/v1".
func New(base string, mgr *manager.TaskManager, tel telemetry.Telemetry) *Handler {
	h := &Handler{mgr: mgr, tel: telemetry.Normalize(tel), mux: http.NewServeMux(), base: base}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) routes() {
	prefix := h.base + "/v1"
	h.mux.HandleFunc("POST "+prefix+"/message:send", h.messageSend)
	h.mux.HandleFunc("POST "+prefix+"/message:stream", h.messageStream)
	// ServeMux wildcards must span a whole path segment, so "{id}:cancel" and
	// "{id}:resubscribe" are matched as "{id}" and split on the suffix here.
	h.mux.HandleFunc("GET "+prefix+"/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := strings.CutSuffix(r.PathValue("id"), ":resubscribe"); ok {
			r.SetPathValue("id", id)
			h.resubscribe(w, r)
			return
		}
		h.getTask(w, r)
	})
	h.mux.HandleFunc("POST "+prefix+"/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := strings.CutSuffix(r.PathValue("id"), ":cancel")
		if !ok {
			http.NotFound(w, r)
			return
		}
		r.SetPathValue("id", id)
		h.cancelTask(w, r)
	})
	h.mux.HandleFunc("GET "+prefix+"/tasks", h.listTasks)
	h.mux.HandleFunc("POST "+prefix+"/tasks/{id}/pushNotificationConfigs", h.setPushConfig)
	h.mux.HandleFunc("GET "+prefix+"/tasks/{id}/pushNotificationConfigs", h.listPushConfigs)
	h.mux.HandleFunc("GET "+prefix+"/tasks/{id}/pushNotificationConfigs/{configId}", h.getPushConfig)
}

func (h *Handler) messageSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message types.Message `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.InvalidParams("decoding request body: %v", err))
		return
	}
	result, err := h.mgr.SendMessage(r.Context(), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Task != nil {
		writeJSON(w, http.StatusOK, result.Task)
		return
	}
	writeJSON(w, http.StatusOK, result.Message)
}

func (h *Handler) messageStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message types.Message `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.InvalidParams("decoding request body: %v", err))
		return
	}
	events, errc, err := h.mgr.SendMessageStream(r.Context(), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	h.streamSSE(w, r.Context(), events, errc)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var historyLength *int
	if v := r.URL.Query().Get("historyLength"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, errs.InvalidParams("historyLength must be an integer"))
			return
		}
		historyLength = &n
	}
	task, err := h.mgr.GetTask(r.Context(), id, historyLength)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.mgr.CancelTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := 0
	if v := q.Get("pageSize"); v != "" {
		pageSize, _ = strconv.Atoi(v)
	}
	result, err := h.mgr.ListTasks(r.Context(), types.ListFilter{
		ContextID: q.Get("contextId"),
		PageSize:  pageSize,
		PageToken: q.Get("pageToken"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Tasks         []types.Task `json:"tasks"`
		TotalSize     int          `json:"totalSize"`
		NextPageToken string       `json:"nextPageToken,omitempty"`
	}{result.Tasks, result.TotalSize, result.NextPageToken})
}

func (h *Handler) resubscribe(w http.ResponseWriter, r *http.Request) {
	events, errc, err := h.mgr.ResubscribeTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.streamSSE(w, r.Context(), events, errc)
}

func (h *Handler) setPushConfig(w http.ResponseWriter, r *http.Request) {
	var body types.PushNotificationConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.InvalidParams("decoding request body: %v", err))
		return
	}
	config, err := h.mgr.SetPushNotificationConfig(r.Context(), r.PathValue("id"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (h *Handler) listPushConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.mgr.ListPushNotificationConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (h *Handler) getPushConfig(w http.ResponseWriter, r *http.Request) {
	configID := r.PathValue("configId")
	config, ok, err := h.mgr.GetPushNotificationConfig(r.Context(), r.PathValue("id"), configID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errs.TaskNotFound(configID))
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// streamSSE is shared by messageStream and resubscribe, mirroring the
// jsonrpc transport's keep-alive pacing so both surfaces behave identically
// under the same reconnect-storm conditions.
func (h *Handler) streamSSE(w http.ResponseWriter, ctx context.Context, events <-chan types.Event, errc <-chan error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errs.Wrap(nil, "response writer does not support streaming"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	limiter := rate.NewLimiter(rate.Every(15*time.Second), 1)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, more := <-events:
			if !more {
				return
			}
			payload, err := codec.EncodeEvent(e)
			if err != nil {
				h.tel.Log.Error(ctx, "encoding SSE event", "error", err.Error())
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case err := <-errc:
			if err != nil && !errors.Is(err, context.Canceled) {
				h.tel.Log.Warn(ctx, "event stream ended with error", "error", err.Error())
			}
			return
		case <-heartbeat.C:
			if limiter.Allow() {
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			}
		case <-ctx.Done():
			return
		}
	}
}

var statusByName = map[errs.Name]int{
	errs.NameInvalidRequest:               http.StatusBadRequest,
	errs.NameInvalidParams:                http.StatusBadRequest,
	errs.NameMethodNotFound:               http.StatusNotFound,
	errs.NameTaskNotFound:                 http.StatusNotFound,
	errs.NameTaskNotCancelable:            http.StatusConflict,
	errs.NamePushNotificationNotSupported: http.StatusNotImplemented,
	errs.NameUnsupportedOperation:         http.StatusNotImplemented,
	errs.NameContentTypeNotSupported:      http.StatusBadRequest,
	errs.NameInternal:                     http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Wrap(err, "internal error")
	}
	status, ok := statusByName[e.Name]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{e.Message})
}
