// Package server exposes the payment gateway over HTTP. The payment
// endpoints under /api return enveloped JSON, while the transaction
// endpoints speak the bare request/response shapes wallets expect.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/types"
	"github.com/cryptonow/paygate/utils"
)

const maxRequestBody = 1 << 20

// PaymentService is the part of the gateway the HTTP layer needs.
type PaymentService interface {
	CreatePayment(ctx context.Context, req *types.CreatePaymentRequest) (*types.Payment, error)
	GetPayment(id string) (*types.Payment, error)
	ListPayments() []*types.Payment
	Stats() types.StoreStats
	Metadata(id string) (*types.TransactionMetadata, error)
	BuildTransaction(ctx context.Context, id string, req *types.BuildTransactionRequest) (*types.TransactionBundle, error)
	VerifyPayment(ctx context.Context, id string, req *types.VerifyPaymentRequest) (*types.VerificationResult, error)
}

// Server wires a PaymentService into an HTTP router.
type Server struct {
	svc     PaymentService
	log     logger.Logger
	cors    CORSConfig
	metrics bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCORS overrides the permissive default CORS policy.
func WithCORS(cfg CORSConfig) Option {
	return func(s *Server) { s.cors = cfg }
}

// WithMetricsEndpoint mounts the Prometheus handler at /metrics.
func WithMetricsEndpoint() Option {
	return func(s *Server) { s.metrics = true }
}

// New builds a Server around svc.
func New(svc PaymentService, opts ...Option) *Server {
	s := &Server{
		svc: svc,
		log: logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(s.cors))
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/payment/create", s.handleCreate)
		api.Get("/payment/{id}", s.handleGet)
		api.Get("/payment/{id}/transaction", s.handleMetadata)
		api.Post("/payment/{id}/transaction", s.handleTransaction)
		api.Post("/payment/{id}/verify", s.handleVerify)
		api.Get("/payments", s.handleList)
		api.Get("/stats", s.handleStats)
	})

	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeFailure(w, types.NewPaymentError(types.ErrCodeInvalidRequest, "request body unreadable", nil))
		return
	}
	req, err := utils.ParseRequest[types.CreatePaymentRequest](body)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	res, err := s.svc.CreatePayment(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeData(w, http.StatusCreated, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPayment(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeData(w, http.StatusOK, p)
}

// handleMetadata serves the label/icon pair a wallet shows before it
// requests the transaction.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.svc.Metadata(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, types.NewPaymentError(types.ErrCodeInvalidRequest, "request body unreadable", nil))
		return
	}
	req, err := utils.ParseRequest[types.BuildTransactionRequest](body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	bundle, err := s.svc.BuildTransaction(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeFailure(w, types.NewPaymentError(types.ErrCodeInvalidRequest, "request body unreadable", nil))
		return
	}
	req, err := utils.ParseRequest[types.VerifyPaymentRequest](body)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	res, err := s.svc.VerifyPayment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeData(w, http.StatusOK, res)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list := s.svc.ListPayments()
	s.writeData(w, http.StatusOK, map[string]any{
		"payments": list,
		"count":    len(list),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer func() {
		_ = r.Body.Close()
	}()
	return io.ReadAll(reader)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, types.NewPaymentError(types.ErrCodeSerializationFailed, "response encoding failed", nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeData wraps payload in the success envelope the payment endpoints
// use.
func (s *Server) writeData(w http.ResponseWriter, status int, payload any) {
	s.writeJSON(w, status, map[string]any{"success": true, "data": payload})
}

func errorParts(err error) (status int, code, msg string) {
	code = types.CodeOf(err)
	msg = err.Error()
	if code != "" {
		var perr *types.PaymentError
		if errors.As(err, &perr) {
			msg = perr.Message
		}
	}
	return statusForCode(code), code, msg
}

// writeError is the bare error shape of the wallet endpoints.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code, msg := errorParts(err)
	payload := map[string]any{"error": msg}
	if code != "" {
		payload["code"] = code
	}
	body, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeFailure is the enveloped error shape of the payment endpoints.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status, code, msg := errorParts(err)
	payload := map[string]any{"success": false, "error": msg}
	if code != "" {
		payload["code"] = code
	}
	body, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// statusForCode maps domain error codes onto HTTP statuses. Codes that
// only ever surface as refusal results never reach here.
func statusForCode(code string) int {
	switch code {
	case types.ErrCodeInvalidRequest, types.ErrCodeInvalidAddress,
		types.ErrCodeUnsupportedToken, types.ErrCodeAmountOutOfRange:
		return http.StatusBadRequest
	case types.ErrCodePaymentNotFound:
		return http.StatusNotFound
	case types.ErrCodePaymentExpired:
		return http.StatusGone
	case types.ErrCodeNetworkUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrCodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
