package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mintgate/crypto"
	"mintgate/native/issuance"
	"mintgate/observability"
	mintotel "mintgate/observability/otel"
	"mintgate/storage/eventlog"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
	shutdownTimeout    = 10 * time.Second
)

// EventSource serves archived registry events to events_list.
type EventSource interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Entry, error)
}

type ServerConfig struct {
	Auth      AuthConfig
	RateLimit RateLimit

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// call is the decoded invocation handed to a method handler.
type call struct {
	caller        crypto.Address
	authenticated bool
	params        []json.RawMessage
}

type handlerFunc func(ctx context.Context, c *call) (interface{}, *RPCError)

type method struct {
	module      string
	requireAuth bool
	handler     handlerFunc
}

type Server struct {
	engine  *issuance.Engine
	events  EventSource
	cfg     ServerConfig
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	methods map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(engine *issuance.Engine, events EventSource, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	s := &Server{
		engine:  engine,
		events:  events,
		cfg:     cfg,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit, logger),
		logger:  logger,
	}
	s.methods = s.registerMethods()
	return s
}

func (s *Server) registerMethods() map[string]method {
	return map[string]method{
		"registry_grantRole":          {module: "registry", requireAuth: true, handler: s.handleGrantRole},
		"registry_revokeRole":         {module: "registry", requireAuth: true, handler: s.handleRevokeRole},
		"registry_hasRole":            {module: "registry", handler: s.handleHasRole},
		"registry_classify":           {module: "registry", handler: s.handleClassify},
		"registry_myRole":             {module: "registry", requireAuth: true, handler: s.handleMyRole},
		"registry_setRestrictedStart": {module: "registry", requireAuth: true, handler: s.handleSetRestrictedStart},
		"registry_setPublicStart":     {module: "registry", requireAuth: true, handler: s.handleSetPublicStart},
		"registry_phases":             {module: "registry", handler: s.handlePhases},
		"issuance_restricted":         {module: "issuance", requireAuth: true, handler: s.handleRestrictedIssue},
		"issuance_open":               {module: "issuance", requireAuth: true, handler: s.handleOpenIssue},
		"issuance_tokenURI":           {module: "issuance", handler: s.handleTokenURI},
		"issuance_ownerOf":            {module: "issuance", handler: s.handleOwnerOf},
		"issuance_balanceOf":          {module: "issuance", handler: s.handleBalanceOf},
		"issuance_totalIssued":        {module: "issuance", handler: s.handleTotalIssued},
		"events_list":                 {module: "events", handler: s.handleEventsList},
	}
}

// Handler returns the routed HTTP surface: JSON-RPC on /rpc plus health,
// metrics and item lookups.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/items/{id}", s.handleItem)
	r.With(s.auth.Middleware, s.limiter.Middleware).Post("/rpc", s.handleRPC)

	return otelhttp.NewHandler(r, "mintgate.rpc")
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	s.logger.Info("rpc server listening", slog.String("address", listener.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCError(w http.ResponseWriter, id interface{}, err *RPCError) {
	writeError(w, err.httpStatus(), id, err.Code, err.Message, err.Data)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx, span := mintotel.Tracer("rpc").Start(r.Context(), req.Method)
	defer span.End()
	span.SetAttributes(attribute.String("rpc.module", m.module))

	c := &call{params: req.Params}
	c.caller, c.authenticated = callerFromContext(ctx)

	start := time.Now()
	var (
		result interface{}
		rpcErr *RPCError
	)
	if m.requireAuth && !c.authenticated {
		rpcErr = newError(http.StatusUnauthorized, codeUnauthenticated, "bearer token required", nil)
	} else {
		result, rpcErr = m.handler(ctx, c)
	}
	elapsed := time.Since(start)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		span.SetAttributes(attribute.Int("rpc.error_code", code))
		span.SetStatus(codes.Error, rpcErr.Message)
	}
	observability.RPC().Observe(m.module, req.Method, code, elapsed)

	attrs := []any{
		slog.String("requestid", requestIDFromContext(ctx)),
		slog.String("method", req.Method),
		slog.Int("status", code),
		slog.Duration("duration", elapsed),
	}
	if c.authenticated {
		attrs = append(attrs, slog.String("caller", c.caller.String()))
	}
	if rpcErr != nil && rpcErr.Code == codeServerError {
		s.logger.Error("rpc call failed", attrs...)
	} else {
		s.logger.Info("rpc call", attrs...)
	}

	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

// handleItem serves GET /items/{id} for metadata consumers that do not
// speak JSON-RPC.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid item id"})
		return
	}
	item, err := s.itemResult(id)
	if err != nil {
		rpcErr := domainError(err)
		if rpcErr.Code == codeServerError {
			s.logger.Error("item lookup failed", slog.Uint64("id", id), slog.String("error", err.Error()))
		}
		w.WriteHeader(rpcErr.httpStatus())
		_ = json.NewEncoder(w).Encode(map[string]string{"error": rpcErr.Message})
		return
	}
	_ = json.NewEncoder(w).Encode(item)
}

func (s *Server) itemResult(id uint64) (*ItemResult, error) {
	item, err := s.engine.Item(id)
	if err != nil {
		return nil, err
	}
	uri, err := s.engine.ResolveURI(id)
	if err != nil {
		return nil, err
	}
	return &ItemResult{
		ID:       item.ID,
		Owner:    crypto.FormatAddress(item.Owner),
		URI:      uri,
		IssuedAt: item.IssuedAt,
	}, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
