//go:build integration

package mongo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
	ledgermongo "licita/internal/ledger/store/mongo"
	"licita/internal/ledger/store/storetest"
	"licita/pkg/testutil/containers"
)

type MongoStoreSuite struct {
	suite.Suite
	mongo *containers.MongoContainer
}

func TestMongoStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupSuite() {
	s.mongo = containers.GetManager().GetMongo(s.T())
}

// newStore returns a store on a database no other test uses.
func (s *MongoStoreSuite) newStore(t *testing.T) *ledgermongo.Store {
	db := s.mongo.Database(fmt.Sprintf("ledger_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	store := ledgermongo.New(db, "")
	if err := store.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return store
}

func (s *MongoStoreSuite) TestContract() {
	storetest.Run(s.T(), func(t *testing.T) service.Store {
		return s.newStore(t)
	})
}

func (s *MongoStoreSuite) TestEnsureIndexesIsIdempotent() {
	store := s.newStore(s.T())
	s.NoError(store.EnsureIndexes(context.Background()))
}

func (s *MongoStoreSuite) TestServiceOverMongo() {
	store := s.newStore(s.T())
	svc, err := service.New(store)
	s.Require().NoError(err)
	ctx := context.Background()

	hash, err := svc.Record(ctx, models.KindLicitacao, "gov-1", models.LicitacaoPayload{
		LicitacaoID:   "L-7",
		NumeroEdital:  "007/2024",
		Titulo:        "Merenda escolar",
		ValorEstimado: 0.1 + 0.2,
	})
	s.Require().NoError(err)

	result, err := svc.Verify(ctx, hash)
	s.Require().NoError(err)
	s.True(result.Found)

	report, err := svc.Validate(ctx)
	s.Require().NoError(err)
	s.True(report.Intact, "floating point payloads must survive storage")
}
