package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
	"github.com/kart-io/sentinel-cluster/pkg/id"
)

// MongoEmbeddingStore 基于 MongoDB 的向量存储。
// 每种归属字段各有一个 (owner, model, instruction) 唯一索引，写入使用 $setOnInsert upsert。
type MongoEmbeddingStore struct {
	coll *mongo.Collection
}

var _ EmbeddingStore = (*MongoEmbeddingStore)(nil)

// NewMongoEmbeddingStore 创建向量存储。
func NewMongoEmbeddingStore(db *mongo.Database) *MongoEmbeddingStore {
	return &MongoEmbeddingStore{coll: db.Collection(CollectionEmbeddings)}
}

func fingerprintIndexes() []mongo.IndexModel {
	scopes := []model.Scope{model.ScopeMessages, model.ScopeSessions, model.ScopeUsers}
	idx := make([]mongo.IndexModel, 0, len(scopes))
	for _, scope := range scopes {
		field := model.OwnerField(scope)
		idx = append(idx, mongo.IndexModel{
			Keys: bson.D{
				{Key: field, Value: 1},
				{Key: "model", Value: 1},
				{Key: "instruction", Value: 1},
			},
			Options: options.Index().
				SetName("fingerprint_" + field).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{field: bson.M{"$exists": true}}),
		})
	}
	return idx
}

// EnsureIndexes 创建指纹唯一索引。
func (s *MongoEmbeddingStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, fingerprintIndexes()); err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

func findFilter(scope model.Scope, ownerIDs []string, modelID, instruction string) bson.M {
	return bson.M{
		model.OwnerField(scope): bson.M{"$in": ownerIDs},
		"model":                 modelID,
		"instruction":           instruction,
	}
}

// Find 实现 EmbeddingStore。
func (s *MongoEmbeddingStore) Find(ctx context.Context, scope model.Scope, ownerIDs []string, modelID, instruction string) ([]*model.Embedding, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	if model.OwnerField(scope) == "" {
		return nil, errors.ErrUnsupportedScope.WithMessagef("unsupported scope %q", scope)
	}

	cur, err := s.coll.Find(ctx, findFilter(scope, ownerIDs, modelID, instruction))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var out []*model.Embedding
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	return out, nil
}

func upsertModel(e *model.Embedding) *mongo.UpdateOneModel {
	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{
			model.OwnerField(e.Scope): e.OwnerID(),
			"model":                   e.Model,
			"instruction":             e.Instruction,
		}).
		SetUpdate(bson.M{"$setOnInsert": e}).
		SetUpsert(true)
}

// InsertMany 实现 EmbeddingStore。
func (s *MongoEmbeddingStore) InsertMany(ctx context.Context, embeddings []*model.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, len(embeddings))
	for i, e := range embeddings {
		if err := e.Validate(); err != nil {
			return errors.ErrStoreFailure.WithCause(fmt.Errorf("embedding %d: %w", i, err))
		}
		if e.ID == "" {
			e.ID = id.New()
		}
		models[i] = upsertModel(e)
	}

	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return errors.ErrStoreFailure.WithCause(err)
	}

	// 未被本次插入的指纹已由其他任务写入，改用已存储记录的 ID
	var upserted map[int64]any
	if res != nil {
		upserted = res.UpsertedIDs
	}
	var existing []*model.Embedding
	for i, e := range embeddings {
		if _, ok := upserted[int64(i)]; !ok {
			existing = append(existing, e)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	logger.Debugw("embedding fingerprints already stored", "count", len(existing))
	return s.reconcileIDs(ctx, existing)
}

func (s *MongoEmbeddingStore) reconcileIDs(ctx context.Context, embeddings []*model.Embedding) error {
	type group struct {
		scope       model.Scope
		model       string
		instruction string
	}
	byGroup := make(map[group][]*model.Embedding)
	for _, e := range embeddings {
		g := group{e.Scope, e.Model, e.Instruction}
		byGroup[g] = append(byGroup[g], e)
	}

	for g, list := range byGroup {
		owners := make([]string, len(list))
		for i, e := range list {
			owners[i] = e.OwnerID()
		}
		stored, err := s.Find(ctx, g.scope, owners, g.model, g.instruction)
		if err != nil {
			return err
		}
		ids := make(map[string]string, len(stored))
		for _, st := range stored {
			ids[st.OwnerID()] = st.ID
		}
		for _, e := range list {
			if storedID, ok := ids[e.OwnerID()]; ok {
				e.ID = storedID
			}
		}
	}
	return nil
}
