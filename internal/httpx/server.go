// Package httpx is the JSON-RPC-2.0-over-HTTP server shared by all
// three agent binaries (manager, referee, player). Every agent mounts
// the same /mcp POST endpoint and differs only in which handlers it
// registers, the way the teacher's cmd/main.go mounts one router with
// per-binary route sets.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// Handler processes one decoded league.v2 message and returns the
// envelope/payload pair to encode as the JSON-RPC "result".
type Handler func(ctx context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error)

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Standard JSON-RPC error codes. For codeAppError, the league.v2
// error_code and error_description are JSON-encoded into the error's
// "message" string (see writeAppError).
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInternalError  = -32603
	codeAppError       = -32000
)

// Server dispatches JSON-RPC method calls to registered Handlers,
// after decoding and validating the league.v2 envelope carried in
// "params" (spec §4.1, §5).
type Server struct {
	mux      *chi.Mux
	handlers map[string]Handler
	logger   *logging.Logger
}

func NewServer(logger *logging.Logger, allowedOrigins []string) *Server {
	s := &Server{
		mux:      chi.NewRouter(),
		handlers: make(map[string]Handler),
		logger:   logger,
	}
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.Recoverer)
	s.mux.Use(middleware.Timeout(60 * time.Second))
	s.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Post("/mcp", s.handleMCP)
	return s
}

// Handle registers the handler invoked for a given JSON-RPC method
// name (spec §6 method-name catalogue).
func (s *Server) Handle(method string, h Handler) {
	s.handlers[method] = h
}

func (s *Server) Router() http.Handler { return s.mux }

// Mux exposes the underlying chi.Router so callers can mount extra
// routes (admin surface, dashboard websocket) alongside /mcp.
func (s *Server) Mux() chi.Router { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, codeParseError, "invalid JSON-RPC envelope: "+err.Error())
		return
	}

	env, payload, err := protocol.Decode(req.Params)
	if err != nil {
		s.logger.WarnEvent("mcp_decode_failed", "method", req.Method, "error", err.Error())
		writeError(w, req.ID, codeInvalidRequest, err.Error())
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		writeError(w, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
		return
	}

	respEnv, respPayload, err := handler(r.Context(), env, payload)
	if err != nil {
		if rpcErr, ok := err.(*protocol.RPCError); ok {
			s.logger.WarnEvent("mcp_handler_rejected", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
			writeAppError(w, req.ID, rpcErr)
			return
		}
		s.logger.WarnEvent("mcp_handler_error", "method", req.Method, "error", err.Error())
		writeError(w, req.ID, codeInternalError, err.Error())
		return
	}

	resultBytes, err := protocol.Encode(respEnv, respPayload)
	if err != nil {
		writeError(w, req.ID, codeInternalError, "failed to encode response: "+err.Error())
		return
	}

	writeResult(w, req.ID, resultBytes)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result json.RawMessage) {
	resp := jsonrpcResponse{JSONRPC: "2.0", Result: result, ID: id}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	resp := jsonrpcResponse{JSONRPC: "2.0", Error: &jsonrpcError{Code: code, Message: message}, ID: id}
	writeJSON(w, http.StatusOK, resp)
}

func writeAppError(w http.ResponseWriter, id json.RawMessage, rpcErr *protocol.RPCError) {
	msg, _ := json.Marshal(map[string]string{"error_code": rpcErr.Code, "error_description": rpcErr.Message})
	resp := jsonrpcResponse{
		JSONRPC: "2.0",
		Error:   &jsonrpcError{Code: codeAppError, Message: string(msg)},
		ID:      id,
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
