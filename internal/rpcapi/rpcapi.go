// Package rpcapi exposes the conversational turn over Connect. Messages are
// google.protobuf.Struct values, so no generated stubs are needed and any
// Connect, gRPC or gRPC-Web client can call the procedure.
package rpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/intent"
)

const (
	ServiceName     = "bolota.v1.AgentService"
	HandleProcedure = "/" + ServiceName + "/Handle"
)

const (
	fieldSessionID = "session_id"
	fieldMessage   = "message"
	fieldReply     = "reply"
	fieldIntent    = "intent"
	fieldAgent     = "agent"
)

var errMissingMessage = errors.New("message is required")

// Agent runs one conversational turn.
type Agent interface {
	Handle(ctx context.Context, sessionID, message string) agent.Result
}

// Reply is the decoded response of the Handle procedure.
type Reply struct {
	SessionID string
	Reply     string
	Intent    intent.Intent
}

// NewHandler returns the mount path and handler of the Handle procedure.
func NewHandler(a Agent, logger *slog.Logger, opts ...connect.HandlerOption) (string, http.Handler) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{agent: a, logger: logger.With("component", "rpcapi")}
	return HandleProcedure, connect.NewUnaryHandler(HandleProcedure, h.handle, opts...)
}

type handler struct {
	agent  Agent
	logger *slog.Logger
}

func (h *handler) handle(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	message := strings.TrimSpace(fields[fieldMessage].GetStringValue())
	if message == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingMessage)
	}
	sessionID := strings.TrimSpace(fields[fieldSessionID].GetStringValue())
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res := h.agent.Handle(ctx, sessionID, message)

	out, err := structpb.NewStruct(map[string]any{
		fieldAgent:     agent.Name,
		fieldSessionID: sessionID,
		fieldReply:     res.Reply,
		fieldIntent:    string(res.Intent),
	})
	if err != nil {
		h.logger.Error("encode reply failed", "session_id", sessionID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Client calls a remote Handle procedure.
type Client struct {
	call *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient targets the server at baseURL, e.g. "http://localhost:8080".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + HandleProcedure
	return &Client{call: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, url, opts...)}
}

// Handle sends one turn. A blank sessionID lets the server assign one,
// returned in Reply.SessionID.
func (c *Client) Handle(ctx context.Context, sessionID, message string) (Reply, error) {
	msg, err := structpb.NewStruct(map[string]any{
		fieldSessionID: sessionID,
		fieldMessage:   message,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("encode request: %w", err)
	}
	res, err := c.call.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return Reply{}, err
	}
	fields := res.Msg.GetFields()
	return Reply{
		SessionID: fields[fieldSessionID].GetStringValue(),
		Reply:     fields[fieldReply].GetStringValue(),
		Intent:    intent.Intent(fields[fieldIntent].GetStringValue()),
	}, nil
}
