package rpcapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/intent"
)

type echoAgent struct {
	mu       sync.Mutex
	sessions []string
}

func (a *echoAgent) Handle(_ context.Context, sessionID, message string) agent.Result {
	a.mu.Lock()
	a.sessions = append(a.sessions, sessionID)
	a.mu.Unlock()
	return agent.Result{Reply: "eco: " + message, Intent: intent.Unknown}
}

func newTestServer(t *testing.T, a Agent) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	path, h := NewHandler(a, nil)
	mux.Handle(path, h)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleRoundTrip(t *testing.T) {
	a := &echoAgent{}
	ts := newTestServer(t, a)

	for name, opts := range map[string][]connect.ClientOption{
		"proto": nil,
		"json":  {connect.WithProtoJSON()},
	} {
		t.Run(name, func(t *testing.T) {
			client := NewClient(ts.Client(), ts.URL, opts...)
			reply, err := client.Handle(context.Background(), "s1", "oi")
			require.NoError(t, err)
			assert.Equal(t, "s1", reply.SessionID)
			assert.Equal(t, "eco: oi", reply.Reply)
			assert.Equal(t, intent.Unknown, reply.Intent)
		})
	}
}

func TestHandleAssignsSessionID(t *testing.T) {
	a := &echoAgent{}
	ts := newTestServer(t, a)

	reply, err := NewClient(ts.Client(), ts.URL).Handle(context.Background(), "", "bravecto")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, []string{reply.SessionID}, a.sessions)
}

func TestHandleRejectsBlankMessage(t *testing.T) {
	a := &echoAgent{}
	ts := newTestServer(t, a)

	_, err := NewClient(ts.Client(), ts.URL).Handle(context.Background(), "s1", "  ")
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Empty(t, a.sessions)
}
