package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"licita/internal/ledger/models"
	"licita/pkg/platform/sentinel"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "transacoes"

// document is the stored shape. Dados holds the payload as a sub-document so
// history filters can reach dados.licitacao_id and dados.proposta_id; DadosJSON
// keeps the exact canonical text, since BSON numbers and key order do not
// round-trip JSON losslessly.
type document struct {
	ID        string `bson:"_id"`
	Kind      string `bson:"kind"`
	ActorID   string `bson:"actor_id"`
	Dados     any    `bson:"dados,omitempty"`
	DadosJSON string `bson:"dados_json"`
	Timestamp int64  `bson:"timestamp"`
	Hash      string `bson:"hash"`
	Confirmed bool   `bson:"confirmed"`
}

// Store implements the ledger store on MongoDB.
type Store struct {
	coll *mongo.Collection
}

// New creates a MongoDB ledger store on db.collection.
func New(db *mongo.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique hash index and the history lookup indexes.
// The _id index already enforces id uniqueness.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("hash_unique"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("actor_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "dados.licitacao_id", Value: 1}},
			Options: options.Index().SetName("dados_licitacao_id").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "dados.proposta_id", Value: 1}},
			Options: options.Index().SetName("dados_proposta_id").SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create ledger indexes: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, tx *models.Transaction) error {
	doc, err := toDocument(tx)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert ledger transaction %s: %w", tx.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

func (s *Store) FindByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	var doc document
	if err := s.coll.FindOne(ctx, bson.M{"hash": hash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger transaction by hash: %w", err)
	}
	return doc.transaction(), nil
}

func (s *Store) FindByHashes(ctx context.Context, hashes []string) ([]*models.Transaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"hash": bson.M{"$in": hashes}})
	if err != nil {
		return nil, fmt.Errorf("query ledger transactions by hash: %w", err)
	}
	return decodeAll(ctx, cursor)
}

func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]*models.Transaction, error) {
	cursor, err := s.coll.Find(ctx, entityFilter(entityID), historyOrder())
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	return decodeAll(ctx, cursor)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count ledger transactions: %w", err)
	}
	return n, nil
}

func (s *Store) ForEach(ctx context.Context, fn func(*models.Transaction) error) error {
	cursor, err := s.coll.Find(ctx, bson.D{}, historyOrder())
	if err != nil {
		return fmt.Errorf("scan ledger transactions: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("decode ledger transaction: %w", err)
		}
		if err := fn(doc.transaction()); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate ledger transactions: %w", err)
	}
	return nil
}

// entityFilter matches the actor or a payload reference. Only string values
// match, as in models.Transaction.References.
func entityFilter(entityID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"actor_id": entityID},
		bson.M{"dados." + models.RefLicitacaoID: bson.M{"$eq": entityID, "$type": "string"}},
		bson.M{"dados." + models.RefPropostaID: bson.M{"$eq": entityID, "$type": "string"}},
	}}
}

func historyOrder() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]*models.Transaction, error) {
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode ledger transactions: %w", err)
	}
	out := make([]*models.Transaction, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].transaction())
	}
	return out, nil
}

func toDocument(tx *models.Transaction) (*document, error) {
	raw := string(tx.Payload)
	if raw == "" {
		raw = "null"
	}
	doc := &document{
		ID:        tx.ID,
		Kind:      string(tx.Kind),
		ActorID:   tx.ActorID,
		DadosJSON: raw,
		Timestamp: tx.Timestamp,
		Hash:      tx.Hash,
		Confirmed: tx.Confirmed,
	}
	if len(tx.Payload) > 0 && tx.Payload[0] == '{' {
		var dados map[string]any
		if err := json.Unmarshal(tx.Payload, &dados); err != nil {
			return nil, fmt.Errorf("decode payload for storage: %w", err)
		}
		doc.Dados = dados
	}
	return doc, nil
}

func (d *document) transaction() *models.Transaction {
	return &models.Transaction{
		ID:        d.ID,
		Kind:      models.Kind(d.Kind),
		ActorID:   d.ActorID,
		Payload:   json.RawMessage(d.DadosJSON),
		Timestamp: d.Timestamp,
		Hash:      d.Hash,
		Confirmed: d.Confirmed,
	}
}
