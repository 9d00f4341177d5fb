package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/articles"
	"github.com/antoniostano/bolota/internal/config"
	"github.com/antoniostano/bolota/internal/intent"
	"github.com/antoniostano/bolota/internal/inventory"
	"github.com/antoniostano/bolota/internal/observability"
	"github.com/antoniostano/bolota/internal/protocol"
	"github.com/antoniostano/bolota/internal/rpcapi"
	"github.com/antoniostano/bolota/internal/session"
)

type recordingAgent struct {
	mu    sync.Mutex
	calls [][2]string
}

func (a *recordingAgent) Handle(_ context.Context, sessionID, message string) agent.Result {
	a.mu.Lock()
	a.calls = append(a.calls, [2]string{sessionID, message})
	a.mu.Unlock()
	return agent.Result{Reply: "resposta para " + message, Intent: intent.MedicineInfo}
}

func (a *recordingAgent) Calls() [][2]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][2]string(nil), a.calls...)
}

type stubArticles struct {
	found []articles.Article
	err   error
}

func (s stubArticles) FindArticles(context.Context, string) ([]articles.Article, error) {
	return s.found, s.err
}

type stubInventory struct {
	items []inventory.Item
	err   error
}

func (s stubInventory) FindMedication(context.Context, string) ([]inventory.Item, error) {
	return s.items, s.err
}

type testEnv struct {
	ts       *httptest.Server
	agent    *recordingAgent
	sessions *session.MemoryStore
}

func newTestEnv(t *testing.T, arts articles.Finder, inv inventory.Finder) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	env := &testEnv{agent: &recordingAgent{}, sessions: session.NewMemoryStore()}
	srv := New(config.Config{}, Dependencies{
		Agent:          env.agent,
		Sessions:       env.sessions,
		Articles:       arts,
		Inventory:      inv,
		InventoryMode:  "memory",
		SessionMode:    "memory",
		Metrics:        observability.NewMetricsWith("test", reg),
		MetricsHandler: observability.HandlerFor(reg),
	})
	env.ts = httptest.NewServer(srv.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	return payload
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return res
}

func TestWebhookRunsTurn(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	res := postJSON(t, env.ts.URL+"/webhook/bolota", `{"sessionId":"s1","message":"me fale sobre amoxicilina"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	payload := decodeBody(t, res)
	assert.Equal(t, "Bolota", payload["agent"])
	assert.Equal(t, "s1", payload["sessionId"])
	assert.Equal(t, "resposta para me fale sobre amoxicilina", payload["reply"])
	assert.Equal(t, "MEDICINE_INFO", payload["intent"])
}

func TestWebhookGeneratesSessionID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	payload := decodeBody(t, postJSON(t, env.ts.URL+"/webhook/bolota", `{"message":"oi"}`))
	id, _ := payload["sessionId"].(string)
	assert.NotEmpty(t, id)
	calls := env.agent.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0][0])
}

func TestWebhookRejectsMissingMessage(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, body := range []string{``, `{"sessionId":"s1"}`, `{"message":"   "}`, `{"message":`} {
		res := postJSON(t, env.ts.URL+"/webhook/bolota", body)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)
		payload := decodeBody(t, res)
		assert.Equal(t, "invalid_request", payload["code"], body)
		assert.NotEmpty(t, payload["error"], body)
	}
	assert.Empty(t, env.agent.Calls())
}

func TestClearSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, session.SetLastMedication(ctx, env.sessions, "s1", "bravecto"))

	req, err := http.NewRequest(http.MethodDelete, env.ts.URL+"/webhook/bolota/sessions/s1", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestMedicationsEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		env := newTestEnv(t, nil, stubInventory{items: []inventory.Item{{Code: "AMX-250", Description: "Amoxicilina 250mg", Price: 45.9, Stock: 0}}})
		res, err := http.Get(env.ts.URL + "/medications?query=amoxicilina")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		payload := decodeBody(t, res)
		items, _ := payload["items"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "AMX-250", item["code"])
		assert.Equal(t, "out_of_stock", item["status"])
		assert.NotContains(t, payload, "message")
	})

	t.Run("empty", func(t *testing.T) {
		env := newTestEnv(t, nil, stubInventory{})
		res, err := http.Get(env.ts.URL + "/medications?query=xyz")
		require.NoError(t, err)
		payload := decodeBody(t, res)
		assert.Equal(t, "No records found", payload["message"])
		assert.Equal(t, []any{}, payload["items"])
	})

	t.Run("missing query", func(t *testing.T) {
		env := newTestEnv(t, nil, stubInventory{})
		res, err := http.Get(env.ts.URL + "/medications")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("lookup failure", func(t *testing.T) {
		env := newTestEnv(t, nil, stubInventory{err: errors.New("db down")})
		res, err := http.Get(env.ts.URL + "/medications?query=amoxicilina")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	})
}

func TestPubMedEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		env := newTestEnv(t, stubArticles{found: []articles.Article{{ID: "42", Title: "Bravecto in cats"}}}, nil)
		res, err := http.Get(env.ts.URL + "/pubmed?query=bravecto")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		payload := decodeBody(t, res)
		items, _ := payload["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "Bravecto in cats", items[0].(map[string]any)["title"])
	})

	t.Run("missing query", func(t *testing.T) {
		env := newTestEnv(t, stubArticles{}, nil)
		res, err := http.Get(env.ts.URL + "/pubmed?query=%20")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newTestEnv(t, stubArticles{err: errors.New("503")}, nil)
		res, err := http.Get(env.ts.URL + "/pubmed?query=bravecto")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	})
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	res, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, res)["status"])

	res, err = http.Get(env.ts.URL + "/readyz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	payload := decodeBody(t, res)
	assert.Equal(t, "ready", payload["status"])
	assert.Equal(t, "memory", payload["inventory_mode"])
}

func TestUnknownRouteIsJSON(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	res, err := http.Get(env.ts.URL + "/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeBody(t, res)["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	decodeBody(t, postJSON(t, env.ts.URL+"/webhook/bolota", `{"message":"oi"}`))

	res, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "test_ws_connections")
}

func TestChatWebSocket(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/webhook/bolota/ws?session_id=s9"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var started protocol.SystemEvent
	require.NoError(t, conn.ReadJSON(&started))
	assert.Equal(t, protocol.TypeSystemEvent, started.Type)
	assert.Equal(t, "session_started", started.Code)
	assert.Equal(t, "s9", started.SessionID)

	require.NoError(t, conn.WriteJSON(protocol.UserMessage{Type: protocol.TypeUserMessage, Message: "bravecto"}))
	var reply protocol.AgentReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, protocol.TypeAgentReply, reply.Type)
	assert.Equal(t, "Bolota", reply.Agent)
	assert.Equal(t, "s9", reply.SessionID)
	assert.Equal(t, "resposta para bravecto", reply.Reply)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"wat"}`)))
	var errEvent protocol.ErrorEvent
	require.NoError(t, conn.ReadJSON(&errEvent))
	assert.Equal(t, protocol.TypeErrorEvent, errEvent.Type)
	assert.Equal(t, "invalid_client_message", errEvent.Code)

	require.NoError(t, session.SetLastMedication(context.Background(), env.sessions, "s9", "bravecto"))
	require.NoError(t, conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionReset}))
	var reset protocol.SystemEvent
	require.NoError(t, conn.ReadJSON(&reset))
	assert.Equal(t, "session_reset", reset.Code)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestChatWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/webhook/bolota/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestConnectProcedureIsMounted(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	reply, err := rpcapi.NewClient(env.ts.Client(), env.ts.URL).Handle(context.Background(), "s2", "oi")
	require.NoError(t, err)
	assert.Equal(t, "s2", reply.SessionID)
	assert.Equal(t, "resposta para oi", reply.Reply)
	assert.Equal(t, intent.MedicineInfo, reply.Intent)
}

func TestWebhookBodyLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	body := `{"message":"` + string(big) + `"}`

	res := postJSON(t, env.ts.URL+"/webhook/bolota", body)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
