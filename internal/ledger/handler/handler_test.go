package handler

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"licita/internal/ledger/handler/mocks"
	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
	"licita/internal/ledger/store/memory"
	"licita/internal/platform/middleware"
	dErrors "licita/pkg/domain-errors"
	"licita/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type stubValidator map[string]*middleware.JWTClaims

func (v stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

var validator = stubValidator{
	"empresa-token": {UserID: "empresa-1", TipoUsuario: "empresa"},
	"governo-token": {UserID: "gov-1", TipoUsuario: "governo"},
}

type LedgerHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestLedgerHandlerSuite(t *testing.T) {
	suite.Run(t, new(LedgerHandlerSuite))
}

func (s *LedgerHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger, validator).Register(s.router)
}

func (s *LedgerHandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), token)
	return testutil.DoRequest(s.router, req)
}

func (s *LedgerHandlerSuite) TestRequiresToken() {
	w := s.do(http.MethodPost, "/api/blockchain/verificar", "", map[string]string{"hash": "abc"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/blockchain/estatisticas", "forged", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *LedgerHandlerSuite) TestVerify() {
	s.Run("found", func() {
		s.service.EXPECT().Verify(gomock.Any(), "abc").Return(&models.VerifyResult{
			Found: true,
			Transaction: &models.TransactionView{
				ID:        "tx-1",
				Kind:      models.KindCadastro,
				Payload:   map[string]any{"usuario": "alice"},
				Timestamp: 1700000000000,
				Confirmed: true,
			},
		}, nil)

		w := s.do(http.MethodPost, "/api/blockchain/verificar", "empresa-token", map[string]string{"hash": "abc"})
		s.Require().Equal(http.StatusOK, w.Code)
		got := testutil.UnmarshalData[models.VerifyResult](s.T(), w)
		s.True(got.Found)
		s.Equal("tx-1", got.Transaction.ID)
		s.True(got.Transaction.Confirmed)
	})

	s.Run("not found is a normal result", func() {
		s.service.EXPECT().Verify(gomock.Any(), "nope").Return(&models.VerifyResult{
			Found:   false,
			Message: models.NotFoundMessage,
		}, nil)

		w := s.do(http.MethodPost, "/api/blockchain/verificar", "empresa-token", map[string]string{"hash": "nope"})
		s.Require().Equal(http.StatusOK, w.Code)
		got := testutil.UnmarshalData[models.VerifyResult](s.T(), w)
		s.False(got.Found)
		s.Equal(models.NotFoundMessage, got.Message)
	})

	s.Run("missing hash", func() {
		w := s.do(http.MethodPost, "/api/blockchain/verificar", "empresa-token", map[string]string{})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_error", testutil.UnmarshalErrorResponse(s.T(), w)["error"])
	})

	s.Run("malformed body", func() {
		w := s.do(http.MethodPost, "/api/blockchain/verificar", "empresa-token", "{")
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("bad_request", testutil.UnmarshalErrorResponse(s.T(), w)["error"])
	})

	s.Run("store failure hides details", func() {
		s.service.EXPECT().Verify(gomock.Any(), "abc").
			Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeInternal, "failed to look up transaction"))

		w := s.do(http.MethodPost, "/api/blockchain/verificar", "empresa-token", map[string]string{"hash": "abc"})
		s.Equal(http.StatusInternalServerError, w.Code)
		body := testutil.UnmarshalErrorResponse(s.T(), w)
		s.Equal("internal_error", body["error"])
		s.NotContains(body, "error_description")
	})
}

func (s *LedgerHandlerSuite) TestVerifyBatch() {
	s.Run("ok", func() {
		s.service.EXPECT().VerifyMany(gomock.Any(), []string{"a", "b"}).Return([]models.BatchVerifyResult{
			{Hash: "a", Result: models.VerifyResult{Found: true}},
			{Hash: "b", Result: models.VerifyResult{Found: false, Message: models.NotFoundMessage}},
		}, nil)

		w := s.do(http.MethodPost, "/api/blockchain/verificar-lote", "empresa-token",
			map[string][]string{"hashes": {"a", "b"}})
		s.Require().Equal(http.StatusOK, w.Code)
		got := testutil.UnmarshalData[[]models.BatchVerifyResult](s.T(), w)
		s.Require().Len(got, 2)
		s.True(got[0].Result.Found)
		s.False(got[1].Result.Found)
	})

	s.Run("empty list", func() {
		w := s.do(http.MethodPost, "/api/blockchain/verificar-lote", "empresa-token",
			map[string][]string{"hashes": {}})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("too many hashes", func() {
		s.service.EXPECT().VerifyMany(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "too many hashes in one request"))

		w := s.do(http.MethodPost, "/api/blockchain/verificar-lote", "empresa-token",
			map[string][]string{"hashes": {"a"}})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("too many hashes in one request", testutil.UnmarshalErrorResponse(s.T(), w)["error_description"])
	})
}

func seq(items ...models.Summary) iter.Seq2[models.Summary, error] {
	return func(yield func(models.Summary, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func (s *LedgerHandlerSuite) TestHistory() {
	s.Run("returns ordered timeline", func() {
		s.service.EXPECT().History(gomock.Any(), "lic-1").Return(seq(
			models.Summary{ID: "1", Kind: models.KindLicitacao, Timestamp: 1},
			models.Summary{ID: "2", Kind: models.KindProposta, Timestamp: 2},
		))

		w := s.do(http.MethodGet, "/api/blockchain/historico/lic-1", "empresa-token", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		got := testutil.UnmarshalData[historyResponse](s.T(), w)
		s.Equal("lic-1", got.EntidadeID)
		s.Require().Len(got.Transacoes, 2)
		s.Equal(models.KindLicitacao, got.Transacoes[0].Kind)
	})

	s.Run("empty timeline is an empty array", func() {
		s.service.EXPECT().History(gomock.Any(), "ghost").Return(seq())

		w := s.do(http.MethodGet, "/api/blockchain/historico/ghost", "empresa-token", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"transacoes":[]`)
	})

	s.Run("store failure", func() {
		s.service.EXPECT().History(gomock.Any(), "lic-1").Return(iter.Seq2[models.Summary, error](
			func(yield func(models.Summary, error) bool) {
				yield(models.Summary{}, dErrors.New(dErrors.CodeInternal, "failed to load history"))
			}))

		w := s.do(http.MethodGet, "/api/blockchain/historico/lic-1", "empresa-token", nil)
		s.Equal(http.StatusInternalServerError, w.Code)
	})
}

func (s *LedgerHandlerSuite) TestValidateRequiresGoverno() {
	w := s.do(http.MethodGet, "/api/blockchain/validar", "empresa-token", nil)
	s.Equal(http.StatusForbidden, w.Code)

	s.service.EXPECT().Validate(gomock.Any()).Return(&models.ValidationReport{
		Total: 2, Valid: 1, Invalid: []string{"tx-2"}, Intact: false,
	}, nil)
	w = s.do(http.MethodGet, "/api/blockchain/validar", "governo-token", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	got := testutil.UnmarshalData[models.ValidationReport](s.T(), w)
	s.False(got.Intact)
	s.Equal([]string{"tx-2"}, got.Invalid)
}

func (s *LedgerHandlerSuite) TestStats() {
	s.service.EXPECT().Count(gomock.Any()).Return(int64(7), nil)

	w := s.do(http.MethodGet, "/api/blockchain/estatisticas", "empresa-token", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":true,"data":{"transacoes_blockchain":7}}`, w.Body.String())
}

// Exercises the routes against a real service over the in-memory store.
func TestHandlerWithLedger(t *testing.T) {
	store := memory.NewInMemoryStore()
	ledger, err := service.New(store)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(ledger, slog.New(slog.NewTextHandler(io.Discard, nil)), validator).Register(r)

	ctx := testutil.At(1700000000000)
	licHash, err := ledger.RecordAction(ctx, models.NewLicitacao("gov-1", models.LicitacaoPayload{
		LicitacaoID:   "lic-9",
		NumeroEdital:  "001/2024",
		Titulo:        "Merenda escolar",
		ValorEstimado: 150000,
	}))
	require.NoError(t, err)
	_, err = ledger.RecordAction(testutil.At(1700000001000), models.NewProposta("empresa-1", models.PropostaPayload{
		PropostaID:    "prop-1",
		LicitacaoID:   "lic-9",
		ValorProposta: 120000,
		PrazoExecucao: 90,
	}))
	require.NoError(t, err)

	w := testutil.DoRequest(r, testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodPost, "/api/blockchain/verificar", map[string]string{"hash": licHash}),
		"empresa-token"))
	require.Equal(t, http.StatusOK, w.Code)
	verified := testutil.UnmarshalData[models.VerifyResult](t, w)
	assert.True(t, verified.Found)
	assert.Equal(t, models.KindLicitacao, verified.Transaction.Kind)

	w = testutil.DoRequest(r, testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/blockchain/historico/lic-9", nil),
		"empresa-token"))
	require.Equal(t, http.StatusOK, w.Code)
	history := testutil.UnmarshalData[historyResponse](t, w)
	require.Len(t, history.Transacoes, 2)
	assert.Equal(t, models.KindLicitacao, history.Transacoes[0].Kind)
	assert.Equal(t, models.KindProposta, history.Transacoes[1].Kind)
	assert.Equal(t, licHash, history.Transacoes[0].Hash)

	w = testutil.DoRequest(r, testutil.WithBearer(
		testutil.NewJSONRequest(t, http.MethodGet, "/api/blockchain/validar", nil),
		"governo-token"))
	require.Equal(t, http.StatusOK, w.Code)
	report := testutil.UnmarshalData[models.ValidationReport](t, w)
	assert.True(t, report.Intact)
	assert.Equal(t, int64(2), report.Total)
}
