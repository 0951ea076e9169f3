package jsonrpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2aserver/a2a-core/a2a/eventstore"
	"github.com/a2aserver/a2a-core/a2a/manager"
	"github.com/a2aserver/a2a-core/a2a/pushconfig"
	"github.com/a2aserver/a2a-core/a2a/store"
	"github.com/a2aserver/a2a-core/a2a/telemetry"
	"github.com/a2aserver/a2a-core/a2a/transport/jsonrpc"
	"github.com/a2aserver/a2a-core/a2a/types"
	"github.com/a2aserver/a2a-core/a2a/updater"
)

type echoHandler struct{}

func (echoHandler) Execute(ctx context.Context, u *updater.TaskUpdater, msg types.Message) error {
	if err := u.StartWork(ctx); err != nil {
		return err
	}
	return u.Complete(ctx, nil)
}

func (echoHandler) Cancel(context.Context, string) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mgr := manager.New(manager.Options{
		Tasks:   store.NewMemoryStore(),
		Events:  eventstore.NewMemoryStore(),
		Push:    pushconfig.NewMemoryStore(),
		Handler: echoHandler{},
	})
	srv := httptest.NewServer(jsonrpc.New(mgr, telemetry.Noop()))
	t.Cleanup(srv.Close)
	return srv
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func post(t *testing.T, srv *httptest.Server, body string) rpcEnvelope {
	t.Helper()
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestMessageSendHappyPath(t *testing.T) {
	srv := newTestServer(t)

	env := post(t, srv, `{
		"jsonrpc": "2.0", "id": 1, "method": "message/send",
		"params": {"message": {"messageId": "m1", "role": "user", "parts": [{"kind": "text", "text": "hi"}]}}
	}`)

	require.Nil(t, env.Error)
	var task types.Task
	require.NoError(t, json.Unmarshal(env.Result, &task))
	assert.Equal(t, types.TaskStateCompleted, task.Status.State)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	srv := newTestServer(t)

	env := post(t, srv, `{"jsonrpc": "2.0", "id": 2, "method": "tasks/frobnicate", "params": {}}`)

	require.NotNil(t, env.Error)
	assert.Equal(t, -32601, env.Error.Code)
}

func TestMalformedParamsReturnsInvalidParams(t *testing.T) {
	srv := newTestServer(t)

	env := post(t, srv, `{"jsonrpc": "2.0", "id": 3, "method": "message/send", "params": "not an object"}`)

	require.NotNil(t, env.Error)
	assert.Equal(t, -32602, env.Error.Code)
}

func TestTasksGetUnknownIDReturnsTaskNotFound(t *testing.T) {
	srv := newTestServer(t)

	env := post(t, srv, `{"jsonrpc": "2.0", "id": 4, "method": "tasks/get", "params": {"id": "nonexistent"}}`)

	require.NotNil(t, env.Error)
	assert.Equal(t, -32001, env.Error.Code)
}

func TestPushNotificationConfigGetSingleVsList(t *testing.T) {
	srv := newTestServer(t)

	sendEnv := post(t, srv, `{
		"jsonrpc": "2.0", "id": 5, "method": "message/send",
		"params": {"message": {"messageId": "m2", "role": "user", "parts": [{"kind": "text", "text": "hi"}]}}
	}`)
	require.Nil(t, sendEnv.Error)
	var task types.Task
	require.NoError(t, json.Unmarshal(sendEnv.Result, &task))

	setEnv := post(t, srv, `{
		"jsonrpc": "2.0", "id": 6, "method": "tasks/pushNotificationConfig/set",
		"params": {"taskId": "`+task.ID+`", "pushNotificationConfig": {"url": "https://example.com/hook"}}
	}`)
	require.Nil(t, setEnv.Error)
	var stored types.PushNotificationConfig
	require.NoError(t, json.Unmarshal(setEnv.Result, &stored))
	require.NotEmpty(t, stored.ID)

	listEnv := post(t, srv, `{"jsonrpc": "2.0", "id": 7, "method": "tasks/pushNotificationConfig/get", "params": {"id": "`+task.ID+`"}}`)
	require.Nil(t, listEnv.Error)
	var list []types.PushNotificationConfig
	require.NoError(t, json.Unmarshal(listEnv.Result, &list))
	assert.Len(t, list, 1)

	getEnv := post(t, srv, `{
		"jsonrpc": "2.0", "id": 8, "method": "tasks/pushNotificationConfig/get",
		"params": {"id": "`+task.ID+`", "pushNotificationConfigId": "`+stored.ID+`"}
	}`)
	require.Nil(t, getEnv.Error)
	var got types.PushNotificationConfig
	require.NoError(t, json.Unmarshal(getEnv.Result, &got))
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "https://example.com/hook", got.URL)
}
