package handler

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licita/internal/ledger/models"
	"licita/internal/platform/middleware"
	dErrors "licita/pkg/domain-errors"
	"licita/pkg/platform/httputil"
	"licita/pkg/requestcontext"
)

// RoleGoverno is the party type allowed to run the integrity sweep.
const RoleGoverno = "governo"

// Service defines the ledger reads exposed over HTTP.
type Service interface {
	Verify(ctx context.Context, hash string) (*models.VerifyResult, error)
	VerifyMany(ctx context.Context, hashes []string) ([]models.BatchVerifyResult, error)
	History(ctx context.Context, entityID string) iter.Seq2[models.Summary, error]
	Validate(ctx context.Context) (*models.ValidationReport, error)
	Count(ctx context.Context) (int64, error)
}

// Handler serves the /api/blockchain endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	jwtValidator middleware.JWTValidator
}

// New creates a new ledger Handler.
func New(ledger Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		jwtValidator: jwtValidator,
	}
}

// Register registers the ledger routes with the chi router. Every route
// requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/blockchain", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/verificar", h.handleVerify)
		r.Post("/verificar-lote", h.handleVerifyBatch)
		r.Get("/historico/{id}", h.handleHistory)
		r.Get("/estatisticas", h.handleStats)
		r.With(middleware.RequireRole(h.logger, RoleGoverno)).Get("/validar", h.handleValidate)
	})
}

type verifyRequest struct {
	Hash string `json:"hash"`
}

type verifyBatchRequest struct {
	Hashes []string `json:"hashes"`
}

type historyResponse struct {
	EntidadeID string           `json:"entidade_id"`
	Transacoes []models.Summary `json:"transacoes"`
}

type statsResponse struct {
	TransacoesBlockchain int64 `json:"transacoes_blockchain"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Hash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "Hash é obrigatório"))
		return
	}

	result, err := h.ledger.Verify(ctx, req.Hash)
	if err != nil {
		h.fail(ctx, w, "failed to verify transaction", err)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

func (h *Handler) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Hashes) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "hashes é obrigatório"))
		return
	}

	results, err := h.ledger.VerifyMany(ctx, req.Hashes)
	if err != nil {
		h.fail(ctx, w, "failed to verify transactions", err)
		return
	}
	httputil.WriteData(w, http.StatusOK, results)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID := chi.URLParam(r, "id")

	resp := historyResponse{EntidadeID: entityID, Transacoes: []models.Summary{}}
	for summary, err := range h.ledger.History(ctx, entityID) {
		if err != nil {
			h.fail(ctx, w, "failed to load history", err)
			return
		}
		resp.Transacoes = append(resp.Transacoes, summary)
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.ledger.Validate(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to validate ledger", err)
		return
	}
	if !report.Intact {
		h.logger.WarnContext(ctx, "ledger integrity sweep found mismatches",
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", requestcontext.ActorID(ctx),
			"invalid", len(report.Invalid),
		)
	}
	httputil.WriteData(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.ledger.Count(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to count transactions", err)
		return
	}
	httputil.WriteData(w, http.StatusOK, statsResponse{TransacoesBlockchain: n})
}

// fail logs err at a level matching its code and writes the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
