// Package server is a development implementation of the chat endpoint the
// client streams from.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"nightshade/pkg/ai"
	"nightshade/pkg/logging"
	"nightshade/pkg/stream"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server serves POST /api/chat from an ai.Provider.
type Server struct {
	provider ai.Provider
	logger   *slog.Logger
}

// New creates a server streaming replies from provider.
func New(provider ai.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{provider: provider, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/chat", s.handleChat)

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	reqID := chimiddleware.GetReqID(r.Context())

	var body stream.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Msg) == "" {
		writeError(w, r, http.StatusBadRequest, "msg is required")
		return
	}

	chatReq := ToChatRequest(body)
	s.logger.Debug("server_chat_request",
		"request_id", reqID,
		"history", len(body.History),
		"msg_len", len(body.Msg),
	)

	st, err := s.provider.CreateChatCompletionStream(r.Context(), chatReq)
	if err != nil {
		s.logger.Error("server_provider_error", "request_id", reqID, "error", err)
		writeError(w, r, http.StatusBadGateway, "provider request failed")
		return
	}
	defer st.Close()

	// Hold the status until the provider yields, so an upstream failure on
	// the first read still becomes a 502.
	ok := st.Next()
	if !ok {
		if err := st.Err(); err != nil {
			s.logger.Error("server_provider_error", "request_id", reqID, "error", err)
			writeError(w, r, http.StatusBadGateway, "provider request failed")
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	chunks, written := 0, 0
	for ; ok; ok = st.Next() {
		chunk := st.Content()
		if chunk == "" {
			continue
		}
		n, err := io.WriteString(w, chunk)
		written += n
		if err != nil {
			s.logger.Debug("server_client_gone", "request_id", reqID, "error", err)
			return
		}
		chunks++
		if err := rc.Flush(); err != nil {
			s.logger.Debug("server_flush_failed", "request_id", reqID, "error", err)
		}
	}

	if err := st.Err(); err != nil {
		s.logger.Error("server_stream_error",
			"request_id", reqID,
			"chunks", chunks,
			"bytes", written,
			"error", err,
		)
		// Drop the connection so the client sees a truncated body.
		panic(http.ErrAbortHandler)
	}

	s.logger.Info("server_chat_done",
		"request_id", reqID,
		"chunks", chunks,
		"bytes", written,
	)
}

// ToChatRequest converts a wire request into provider messages. The wire
// role "model" becomes "assistant"; msg is appended as the final user turn.
func ToChatRequest(req stream.Request) ai.ChatRequest {
	messages := make([]ai.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		role := ai.RoleUser
		if m.Role == "model" || m.Role == ai.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: m.Text()})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: req.Msg})
	return ai.ChatRequest{Messages: messages}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http_request",
					"request_id", chimiddleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, handler, logger)
}

// Serve is ListenAndServe on an existing listener.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("server_shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
