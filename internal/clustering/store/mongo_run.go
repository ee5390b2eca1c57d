package store

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
	"github.com/kart-io/sentinel-cluster/pkg/id"
)

// 集合名称。
const (
	CollectionClusterings = "clusterings"
	CollectionClusters    = "clusters"
	CollectionEmbeddings  = "embeddings"
	CollectionMessages    = "messages"
	CollectionSessions    = "sessions"
)

// MongoRunStore 基于 MongoDB 的任务记录存储。
type MongoRunStore struct {
	coll *mongo.Collection
}

var _ RunStore = (*MongoRunStore)(nil)

// NewMongoRunStore 创建任务记录存储。
func NewMongoRunStore(db *mongo.Database) *MongoRunStore {
	return &MongoRunStore{coll: db.Collection(CollectionClusterings)}
}

// EnsureIndexes 创建查询索引。
func (s *MongoRunStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("project_created"),
	})
	if err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

// Create 实现 RunStore。
func (s *MongoRunStore) Create(ctx context.Context, run *model.Clustering) error {
	if run.ID == "" {
		run.ID = id.New()
	}
	now := time.Now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now

	if _, err := s.coll.InsertOne(ctx, run); err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

// Get 实现 RunStore。
func (s *MongoRunStore) Get(ctx context.Context, runID string) (*model.Clustering, error) {
	var run model.Clustering
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrRunNotFound.WithMessagef("clustering %s not found", runID)
	}
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	return &run, nil
}

func (s *MongoRunStore) set(ctx context.Context, runID string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": runID}, bson.M{"$set": fields})
	if err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrRunNotFound.WithMessagef("clustering %s not found", runID)
	}
	return nil
}

// UpdateStatus 实现 RunStore。
func (s *MongoRunStore) UpdateStatus(ctx context.Context, runID string, status model.Status) error {
	return s.set(ctx, runID, bson.M{"status": status})
}

// UpdateProgress 实现 RunStore。
func (s *MongoRunStore) UpdateProgress(ctx context.Context, runID string, percent float64) error {
	return s.set(ctx, runID, bson.M{"percent_of_completion": model.ClampPercent(percent)})
}

// Complete 实现 RunStore，终态字段在一次更新中写入。
func (s *MongoRunStore) Complete(ctx context.Context, runID string, c model.Completion) error {
	return s.set(ctx, runID, completionFields(c, time.Now().UTC()))
}

func completionFields(c model.Completion, now time.Time) bson.M {
	ids := c.ClustersIDs
	if ids == nil {
		ids = []string{}
	}
	pca := c.PCA
	if pca == nil {
		pca = []model.PCAPoint{}
	}
	return bson.M{
		"status":                model.StatusCompleted,
		"percent_of_completion": 100.0,
		"nb_clusters":           c.NbClusters,
		"clusters_ids":          ids,
		"pca":                   pca,
		"completed_at":          now,
	}
}

// Delete 实现 RunStore。
func (s *MongoRunStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": runID}); err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

// MongoClusterStore 基于 MongoDB 的簇存储。
type MongoClusterStore struct {
	coll *mongo.Collection
}

var _ ClusterStore = (*MongoClusterStore)(nil)

// NewMongoClusterStore 创建簇存储。
func NewMongoClusterStore(db *mongo.Database) *MongoClusterStore {
	return &MongoClusterStore{coll: db.Collection(CollectionClusters)}
}

// EnsureIndexes 创建查询索引。
func (s *MongoClusterStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clustering_id", Value: 1}},
		Options: options.Index().SetName("clustering"),
	})
	if err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

// InsertMany 实现 ClusterStore。
func (s *MongoClusterStore) InsertMany(ctx context.Context, clusters []*model.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	docs := make([]any, len(clusters))
	for i, c := range clusters {
		docs[i] = c
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.ErrStoreFailure.WithCause(err)
	}
	return nil
}

// ListByClustering 实现 ClusterStore。
func (s *MongoClusterStore) ListByClustering(ctx context.Context, clusteringID string) ([]*model.Cluster, error) {
	cur, err := s.coll.Find(ctx, bson.M{"clustering_id": clusteringID},
		options.Find().SetSort(bson.D{{Key: "size", Value: -1}}))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var out []*model.Cluster
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	return out, nil
}
