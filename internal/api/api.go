// Package api provides the HTTP server for QuoteBot's webhook endpoints.
//
// It exposes the Twilio inbound SMS webhook and a health check. The Telegram
// channel uses long polling and needs no inbound endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/brightvolt/quotebot/internal/messaging"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the webhook endpoints.
type Server struct {
	srv       *http.Server
	responder *messaging.Responder
}

// NewServer creates the API server around an SMS responder.
func NewServer(responder *messaging.Responder, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{responder: responder}
	mux := http.NewServeMux()
	mux.HandleFunc("/twilio/inbound", s.twilioInboundHandler)
	mux.HandleFunc("/healthz", healthHandler)
	s.srv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("API server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// twilioInboundHandler receives Twilio's form-encoded inbound SMS webhook.
// Replies go out through the REST API, so the webhook response is an empty
// TwiML document.
func (s *Server) twilioInboundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Twilio webhook parse failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := s.responder.HandleInbound(ctx, from, body); err != nil {
		// The responder already messaged the user; the webhook itself
		// must still return success so Twilio does not retry.
		slog.Error("Twilio inbound handling failed", "error", err, "from", from)
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
