package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/articles"
	"github.com/antoniostano/bolota/internal/config"
	"github.com/antoniostano/bolota/internal/inventory"
	"github.com/antoniostano/bolota/internal/observability"
	"github.com/antoniostano/bolota/internal/protocol"
	"github.com/antoniostano/bolota/internal/rpcapi"
	"github.com/antoniostano/bolota/internal/session"
)

const maxBodyBytes = 64 << 10

// Agent runs one conversational turn.
type Agent interface {
	Handle(ctx context.Context, sessionID, message string) agent.Result
}

// Dependencies wires the server. Articles and Inventory back the direct
// search endpoints and may be nil.
type Dependencies struct {
	Agent          Agent
	Sessions       session.Store
	Articles       articles.Finder
	Inventory      inventory.Finder
	InventoryMode  string
	SessionMode    string
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type Server struct {
	cfg            config.Config
	agent          Agent
	sessions       session.Store
	articles       articles.Finder
	inventory      inventory.Finder
	inventoryMode  string
	sessionMode    string
	metrics        *observability.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger
	upgrader       websocket.Upgrader
}

func New(cfg config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = observability.MetricsHandler()
	}
	return &Server{
		cfg:            cfg,
		agent:          deps.Agent,
		sessions:       deps.Sessions,
		articles:       deps.Articles,
		inventory:      deps.Inventory,
		inventoryMode:  deps.InventoryMode,
		sessionMode:    deps.SessionMode,
		metrics:        deps.Metrics,
		metricsHandler: metricsHandler,
		logger:         logger.With("component", "httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser pages may open a chat socket.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler)

	r.Post("/webhook/bolota", s.handleWebhook)
	r.Delete("/webhook/bolota/sessions/{id}", s.handleClearSession)
	r.Get("/webhook/bolota/ws", s.handleChatWS)
	r.Get("/medications", s.handleMedications)
	r.Get("/pubmed", s.handlePubMed)

	if s.agent != nil {
		path, h := rpcapi.NewHandler(s.agent, s.logger)
		r.Method(http.MethodPost, path, h)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agent":  agent.Name,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.agent == nil || s.sessions == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"session_store":  modeOrDefault(s.sessionMode),
		"inventory_mode": modeOrDefault(s.inventoryMode),
		"articles":       s.articles != nil,
	})
}

type webhookRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type webhookResponse struct {
	Agent     string `json:"agent"`
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
	Intent    string `json:"intent"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "agent not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req webhookRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res := s.agent.Handle(r.Context(), sessionID, req.Message)
	respondJSON(w, http.StatusOK, webhookResponse{
		Agent:     agent.Name,
		SessionID: sessionID,
		Reply:     res.Reply,
		Intent:    string(res.Intent),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	if s.sessions == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "session store not configured")
		return
	}
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		s.logger.Error("session clear failed", "session_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "session_store_error", "could not clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemsResponse[T any] struct {
	Items   []T    `json:"items"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleMedications(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter query is required")
		return
	}
	if s.inventory == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "inventory not configured")
		return
	}

	items, err := s.inventory.FindMedication(r.Context(), query)
	if err != nil {
		s.logger.Warn("medication search failed", "query", query, "error", err)
		respondError(w, http.StatusBadGateway, "lookup_failed", "medication search failed")
		return
	}
	resp := itemsResponse[inventory.Item]{Items: items}
	if len(items) == 0 {
		resp.Items = []inventory.Item{}
		resp.Message = "No records found"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePubMed(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter query is required")
		return
	}
	if s.articles == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "article search not configured")
		return
	}

	found, err := s.articles.FindArticles(r.Context(), query)
	if err != nil {
		s.logger.Warn("article search failed", "query", query, "error", err)
		respondError(w, http.StatusBadGateway, "lookup_failed", "article search failed")
		return
	}
	if found == nil {
		found = []articles.Article{}
	}
	respondJSON(w, http.StatusOK, itemsResponse[articles.Article]{Items: found})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "agent not configured")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.AddWSConnection(1)
	defer s.metrics.AddWSConnection(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 32)
	outbound := make(chan any, 32)

	// Turns of one connection run one at a time, in arrival order.
	turnsDone := make(chan struct{})
	go func() {
		defer close(turnsDone)
		defer close(outbound)
		s.runTurns(ctx, sessionID, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				_ = conn.Close()
				// Drain so the turn loop never blocks on a dead socket.
				for range outbound {
				}
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.ObserveWSMessage("outbound", string(t))
			}
		}
	}()

	outbound <- protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: sessionID,
		Code:      "session_started",
	}

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			parsed = protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			}
		} else if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-turnsDone
	<-writerDone
}

func (s *Server) runTurns(ctx context.Context, sessionID string, inbound <-chan any, outbound chan<- any) {
	for msg := range inbound {
		var out any
		switch m := msg.(type) {
		case protocol.UserMessage:
			res := s.agent.Handle(ctx, sessionID, m.Message)
			out = protocol.AgentReply{
				Type:      protocol.TypeAgentReply,
				Agent:     agent.Name,
				SessionID: sessionID,
				Reply:     res.Reply,
				Intent:    string(res.Intent),
			}
		case protocol.ClientControl:
			out = s.resetSession(ctx, sessionID)
		case protocol.ErrorEvent:
			out = m
		default:
			continue
		}
		select {
		case <-ctx.Done():
			return
		case outbound <- out:
		}
	}
}

func (s *Server) resetSession(ctx context.Context, sessionID string) any {
	if s.sessions == nil {
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, SessionID: sessionID, Code: "unavailable", Detail: "session store not configured"}
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		s.logger.Error("session clear failed", "session_id", sessionID, "error", err)
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, SessionID: sessionID, Code: "session_store_error", Detail: "could not reset session"}
	}
	return protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "session_reset"}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func modeOrDefault(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return "unknown"
	}
	return mode
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AgentReply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
