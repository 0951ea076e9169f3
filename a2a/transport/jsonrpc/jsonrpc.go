// Package jsonrpc implements the JSON-RPC 2.0 + Server-Sent-Events surface
// described by spec.md section 6: HTTP POST carries every method, streaming
// methods (message/stream, tasks/resubscribe) respond as an SSE event
// sequence instead of a single JSON body. This is the server-side
// counterpart to the teacher's httpclient.Client, written in the same
// envelope/error-wrapping style.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/a2aserver/a2a-core/a2a/codec"
	"github.com/a2aserver/a2a-core/a2a/errs"
	"github.com/a2aserver/a2a-core/a2a/manager"
	"github.com/a2aserver/a2a-core/a2a/telemetry"
	"github.com/a2aserver/a2a-core/a2a/types"
)

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// response is a JSON-RPC 2.0 response envelope. Exactly one of Result/Error
// is populated.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler serves the JSON-RPC surface over HTTP POST, delegating every
// method to the same manager.TaskManager the REST binding calls.
type Handler struct {
	mgr *manager.TaskManager
	tel telemetry.Telemetry
}

// New constructs a Handler over mgr.
func New(mgr *manager.TaskManager, tel telemetry.Telemetry) *Handler {
	return &Handler{mgr: mgr, tel: telemetry.Normalize(tel)}
}

// ServeHTTP implements http.Handler, dispatching the decoded method to the
// matching TaskManager operation and writing either a single JSON response
// or an SSE event stream, per spec.md section 6.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, errs.InvalidRequest("parsing JSON-RPC request: %v", err))
		return
	}

	switch req.Method {
	case "message/send":
		h.handleMessageSend(w, r.Context(), req)
	case "message/stream":
		h.handleStream(w, r.Context(), req, h.startMessageStream)
	case "tasks/get":
		h.handleTasksGet(w, r.Context(), req)
	case "tasks/cancel":
		h.handleTasksCancel(w, r.Context(), req)
	case "tasks/list":
		h.handleTasksList(w, r.Context(), req)
	case "tasks/resubscribe":
		h.handleStream(w, r.Context(), req, h.startResubscribe)
	case "tasks/pushNotificationConfig/set":
		h.handlePushConfigSet(w, r.Context(), req)
	case "tasks/pushNotificationConfig/get":
		h.handlePushConfigGet(w, r.Context(), req)
	default:
		writeError(w, req.ID, errs.New(errs.NameMethodNotFound, "unknown method %q", req.Method))
	}
}

type messageSendParams struct {
	Message       types.Message   `json:"message"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

func (h *Handler) handleMessageSend(w http.ResponseWriter, ctx context.Context, req request) {
	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding message/send params: %v", err))
		return
	}
	result, err := h.mgr.SendMessage(ctx, params.Message)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	var payload any
	switch {
	case result.Task != nil:
		payload = result.Task
	case result.Message != nil:
		payload = result.Message
	}
	writeResult(w, req.ID, payload)
}

type streamStarter func(ctx context.Context, req request) (<-chan types.Event, <-chan error, error)

func (h *Handler) startMessageStream(ctx context.Context, req request) (<-chan types.Event, <-chan error, error) {
	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, nil, errs.InvalidParams("decoding message/stream params: %v", err)
	}
	return h.mgr.SendMessageStream(ctx, params.Message)
}

func (h *Handler) startResubscribe(ctx context.Context, req request) (<-chan types.Event, <-chan error, error) {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, nil, errs.InvalidParams("decoding tasks/resubscribe params: %v", err)
	}
	return h.mgr.ResubscribeTask(ctx, params.ID)
}

// handleStream runs start and streams its event channel as SSE, pacing a
// keep-alive comment so long-idle connections (a subscriber reconnected
// after a slow handler) are not mistaken for a dead connection by
// intermediaries, without reconnect storms starving the writer.
func (h *Handler) handleStream(w http.ResponseWriter, ctx context.Context, req request, start streamStarter) {
	events, errc, err := start(ctx, req)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, req.ID, errs.Wrap(nil, "response writer does not support streaming"))
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

func (h *Handler) handleTasksGet(w http.ResponseWriter, ctx context.Context, req request) {
	var params struct {
		ID            string `json:"id"`
		HistoryLength *int   `json:"historyLength,omitempty"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding tasks/get params: %v", err))
		return
	}
	task, err := h.mgr.GetTask(ctx, params.ID, params.HistoryLength)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, task)
}

func (h *Handler) handleTasksCancel(w http.ResponseWriter, ctx context.Context, req request) {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding tasks/cancel params: %v", err))
		return
	}
	task, err := h.mgr.CancelTask(ctx, params.ID)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, task)
}

func (h *Handler) handleTasksList(w http.ResponseWriter, ctx context.Context, req request) {
	var params struct {
		ContextID string `json:"contextId,omitempty"`
		PageSize  int    `json:"pageSize,omitempty"`
		PageToken string `json:"pageToken,omitempty"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding tasks/list params: %v", err))
		return
	}
	result, err := h.mgr.ListTasks(ctx, types.ListFilter{
		ContextID: params.ContextID,
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, struct {
		Tasks         []types.Task `json:"tasks"`
		TotalSize     int          `json:"totalSize"`
		NextPageToken string       `json:"nextPageToken,omitempty"`
	}{result.Tasks, result.TotalSize, result.NextPageToken})
}

func (h *Handler) handlePushConfigSet(w http.ResponseWriter, ctx context.Context, req request) {
	var params struct {
		TaskID                 string                       `json:"taskId"`
		PushNotificationConfig types.PushNotificationConfig `json:"pushNotificationConfig"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding pushNotificationConfig/set params: %v", err))
		return
	}
	config, err := h.mgr.SetPushNotificationConfig(ctx, params.TaskID, params.PushNotificationConfig)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, config)
}

func (h *Handler) handlePushConfigGet(w http.ResponseWriter, ctx context.Context, req request) {
	var params struct {
		ID                       string `json:"id"`
		PushNotificationConfigID string `json:"pushNotificationConfigId"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, req.ID, errs.InvalidParams("decoding pushNotificationConfig/get params: %v", err))
		return
	}
	if params.PushNotificationConfigID != "" {
		config, ok, err := h.mgr.GetPushNotificationConfig(ctx, params.ID, params.PushNotificationConfigID)
		if err != nil {
			writeError(w, req.ID, err)
			return
		}
		if !ok {
			writeError(w, req.ID, errs.TaskNotFound(params.PushNotificationConfigID))
			return
		}
		writeResult(w, req.ID, config)
		return
	}
	configs, err := h.mgr.ListPushNotificationConfig(ctx, params.ID)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configs)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Wrap(err, "internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: e.Code, Message: e.Message},
	})
}
