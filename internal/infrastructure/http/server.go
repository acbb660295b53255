package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"
	"stockdata-pipeline/internal/infrastructure/config"
	"stockdata-pipeline/internal/infrastructure/logx"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	svc  *application.QuoteService
	ping func(ctx context.Context) error
}

func NewServer(svc *application.QuoteService) *Server { return &Server{svc: svc} }

// SetReadyCheck installs the probe used by /readyz.
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

type quoteResponse struct {
	Symbol    string    `json:"symbol"`
	Price     string    `json:"price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type ingestionResponse struct {
	RunID    string         `json:"run_id,omitempty"`
	Inserted bool           `json:"inserted"`
	Quote    *quoteResponse `json:"quote,omitempty"`
}

type runResponse struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) GetLastQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.GetLastQuote(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

func (s *Server) ListQuotes(w http.ResponseWriter, r *http.Request) {
	limit := config.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > config.MaxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(config.MaxHistoryLimit))
			return
		}
		limit = n
	}
	qs, err := s.svc.ListQuotes(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]quoteResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, toQuoteResponse(q))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) TriggerIngestion(w http.ResponseWriter, r *http.Request) {
	var key *string
	if k := r.Header.Get("X-Idempotency-Key"); k != "" {
		key = &k
	}
	res, err := s.svc.TriggerIngestion(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := ingestionResponse{RunID: res.RunID, Inserted: res.Inserted}
	if res.Quote.Symbol != "" {
		q := toQuoteResponse(res.Quote)
		resp.Quote = &q
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) GetIngestionRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.GetIngestionRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		ID:         run.ID,
		Symbol:     run.Symbol,
		Status:     string(run.Status),
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
}

func toQuoteResponse(q domain.Quote) quoteResponse {
	return quoteResponse{
		Symbol:    q.Symbol,
		Price:     q.Price.StringFixed(domain.PriceScale),
		Volume:    q.Volume,
		Timestamp: q.Timestamp,
	}
}

// fail maps service errors onto status codes. Failures caused by the quote
// source surface as 502, configuration problems as 503.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *domain.CoercionError
	switch {
	case errors.Is(err, application.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, "idempotency key already used")
	case errors.Is(err, domain.ErrMissingCredential), errors.Is(err, domain.ErrInvalidSymbol):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrMalformedPayload),
		errors.Is(err, domain.ErrQuoteNotFound),
		errors.Is(err, domain.ErrMissingField),
		errors.As(err, &ce):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logx.FromContext(r.Context()).Error("http.internal_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}
