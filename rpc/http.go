package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordswap/native/market"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotFound       = -32001
	codeStateConflict  = -32010
	codeForbidden      = -32011
	codeTemporalGuard  = -32012
	codeProofRejected  = -32013
	codeInsufficient   = -32014
)

// Server exposes the market engine's operations and read views over JSON-RPC.
type Server struct {
	engine *market.Engine
	logger *slog.Logger
}

// NewServer constructs an RPC server bound to the market engine.
func NewServer(engine *market.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// Handler returns the HTTP handler serving the RPC endpoint, health check and
// prometheus metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, nil, codeParseError, "unable to read request body")
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.Method == "" {
		s.writeError(w, req.ID, codeInvalidRequest, "method required")
		return
	}
	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		s.logger.Info("rpc request failed",
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("reason", rpcErr.Message))
		s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}
	s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) dispatch(req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "market_getListing":
		return s.handleGetListing(req.Params)
	case "market_nextListingId":
		return s.handleNextListingID()
	case "market_balanceOf":
		return s.handleBalanceOf(req.Params)
	case "market_createListing":
		return s.handleCreateListing(req.Params)
	case "market_acceptListing":
		return s.handleAcceptListing(req.Params)
	case "market_commitListing":
		return s.handleCommitListing(req.Params)
	case "market_cancelListing":
		return s.handleCancelListing(req.Params)
	case "market_submitSettlement":
		return s.handleSubmitSettlement(req.Params)
	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode rpc response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	s.writeResponse(w, rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &rpcError{Code: code, Message: message}})
}

// errorToRPC maps the market module's closed error set onto JSON-RPC error
// codes so callers can branch without string matching.
func errorToRPC(err error) *rpcError {
	var code int
	switch {
	case errors.Is(err, market.ErrInvalidID):
		code = codeNotFound
	case errors.Is(err, market.ErrAlreadyDone),
		errors.Is(err, market.ErrListingExists),
		errors.Is(err, market.ErrNotCommitted),
		errors.Is(err, market.ErrNoBuyer):
		code = codeStateConflict
	case errors.Is(err, market.ErrForbidden), errors.Is(err, market.ErrSelfTrade):
		code = codeForbidden
	case errors.Is(err, market.ErrExpired), errors.Is(err, market.ErrNotExpired):
		code = codeTemporalGuard
	case errors.Is(err, market.ErrBtcTxAlreadyUsed),
		errors.Is(err, market.ErrInscriptionMismatch),
		errors.Is(err, market.ErrTxNotForReceiver),
		errors.Is(err, market.ErrValueTooSmall):
		code = codeProofRejected
	case errors.Is(err, market.ErrInsufficientBalance):
		code = codeInsufficient
	case errors.Is(err, market.ErrDustAmount), errors.Is(err, market.ErrNoDestination):
		code = codeInvalidParams
	default:
		code = codeServerError
	}
	return &rpcError{Code: code, Message: err.Error()}
}
