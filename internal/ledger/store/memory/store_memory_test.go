package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
	"licita/internal/ledger/store/storetest"
)

func TestInMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) service.Store {
		return NewInMemoryStore()
	})
}

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

// TestRecordsAreIsolated verifies callers cannot reach stored state through
// the pointers they pass in or receive.
func (s *InMemoryStoreSuite) TestRecordsAreIsolated() {
	tx := storetest.NewTx(s.T(), "tx-1", models.KindCadastro, "u", `{"usuario":"alice"}`, 1)
	s.Require().NoError(s.store.Append(s.ctx, tx))

	tx.ActorID = "mallory"
	tx.Payload[2] = 'X'

	found, err := s.store.FindByHash(s.ctx, tx.Hash)
	s.Require().NoError(err)
	s.Equal("u", found.ActorID)
	s.JSONEq(`{"usuario":"alice"}`, string(found.Payload))

	found.Payload[2] = 'Y'
	again, err := s.store.FindByHash(s.ctx, tx.Hash)
	s.Require().NoError(err)
	s.JSONEq(`{"usuario":"alice"}`, string(again.Payload))
}

func (s *InMemoryStoreSuite) TestClear() {
	s.Require().NoError(s.store.Append(s.ctx, storetest.NewTx(s.T(), "tx-1", models.KindDocumento, "u", `{}`, 1)))
	s.store.Clear()

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *InMemoryStoreSuite) TestForEachHonoursCancellation() {
	s.Require().NoError(s.store.Append(s.ctx, storetest.NewTx(s.T(), "tx-1", models.KindDocumento, "u", `{}`, 1)))
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.store.ForEach(ctx, func(*models.Transaction) error { return nil })
	s.ErrorIs(err, context.Canceled)
}
