package store

import (
	"context"
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/sentinel-cluster/internal/model"
	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

// MongoItemLoaderConfig 条目加载配置。
type MongoItemLoaderConfig struct {
	// ContextTurns 消息粒度下附带的前序轮次数。
	ContextTurns int
	// MaxSessionsPerUser 用户粒度下每个用户最多加载的会话数。
	MaxSessionsPerUser int
}

// DefaultMongoItemLoaderConfig 返回默认配置。
func DefaultMongoItemLoaderConfig() *MongoItemLoaderConfig {
	return &MongoItemLoaderConfig{
		ContextTurns:       3,
		MaxSessionsPerUser: 20,
	}
}

// MongoItemLoader 从 messages 和 sessions 集合加载条目。
// 过滤条件作为 MongoDB 查询条件原样合并。
type MongoItemLoader struct {
	messages *mongo.Collection
	sessions *mongo.Collection
	config   *MongoItemLoaderConfig
}

var _ ItemLoader = (*MongoItemLoader)(nil)

// NewMongoItemLoader 创建条目加载器。
func NewMongoItemLoader(db *mongo.Database, config *MongoItemLoaderConfig) *MongoItemLoader {
	if config == nil {
		config = DefaultMongoItemLoaderConfig()
	}
	return &MongoItemLoader{
		messages: db.Collection(CollectionMessages),
		sessions: db.Collection(CollectionSessions),
		config:   config,
	}
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	OrgID     string    `bson:"org_id,omitempty"`
	ProjectID string    `bson:"project_id"`
	SessionID string    `bson:"session_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

func itemFilter(projectID string, filters map[string]any) bson.M {
	f := bson.M{}
	maps.Copy(f, filters)
	f["project_id"] = projectID
	return f
}

func newestFirst(limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// LoadItems 实现 ItemLoader。
func (l *MongoItemLoader) LoadItems(ctx context.Context, projectID string, scope model.Scope, filters map[string]any, limit int) ([]model.Item, error) {
	switch scope {
	case model.ScopeMessages:
		return l.loadMessages(ctx, projectID, filters, limit)
	case model.ScopeSessions:
		return l.loadSessions(ctx, projectID, filters, limit)
	case model.ScopeUsers:
		return l.loadUsers(ctx, projectID, filters, limit)
	}
	return nil, errors.ErrUnsupportedScope.WithMessagef("unsupported scope %q", scope)
}

func (l *MongoItemLoader) loadMessages(ctx context.Context, projectID string, filters map[string]any, limit int) ([]model.Item, error) {
	f := itemFilter(projectID, filters)
	f["role"] = "user"

	cur, err := l.messages.Find(ctx, f, newestFirst(limit))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}

	history, err := l.sessionHistory(ctx, projectID, docs)
	if err != nil {
		return nil, err
	}
	return attachContext(docs, history, l.config.ContextTurns), nil
}

// sessionHistory 一次查询加载相关会话的全部消息，按时间升序。
func (l *MongoItemLoader) sessionHistory(ctx context.Context, projectID string, docs []messageDoc) (map[string][]messageDoc, error) {
	if l.config.ContextTurns <= 0 || len(docs) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var sessionIDs []string
	for _, d := range docs {
		if _, ok := seen[d.SessionID]; !ok && d.SessionID != "" {
			seen[d.SessionID] = struct{}{}
			sessionIDs = append(sessionIDs, d.SessionID)
		}
	}

	cur, err := l.messages.Find(ctx,
		bson.M{"project_id": projectID, "session_id": bson.M{"$in": sessionIDs}},
		options.Find().SetSort(bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var all []messageDoc
	if err := cur.All(ctx, &all); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}

	history := make(map[string][]messageDoc, len(sessionIDs))
	for _, d := range all {
		history[d.SessionID] = append(history[d.SessionID], d)
	}
	return history, nil
}

// attachContext 为每条消息附上同一会话中紧邻的前 turns 轮。
func attachContext(docs []messageDoc, history map[string][]messageDoc, turns int) []model.Item {
	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		msg := &model.Message{
			Owner:     model.Owner{Org: d.OrgID, Project: d.ProjectID},
			ID:        d.ID,
			SessionID: d.SessionID,
			Role:      d.Role,
			Content:   d.Content,
		}
		if h := history[d.SessionID]; turns > 0 && len(h) > 0 {
			pos := -1
			for i := range h {
				if h[i].ID == d.ID {
					pos = i
					break
				}
			}
			start := max(0, pos-turns)
			for _, prev := range h[start:max(pos, 0)] {
				msg.Previous = append(msg.Previous, model.Turn{Role: prev.Role, Content: prev.Content})
			}
		}
		items = append(items, msg)
	}
	return items
}

func (l *MongoItemLoader) loadSessions(ctx context.Context, projectID string, filters map[string]any, limit int) ([]model.Item, error) {
	cur, err := l.sessions.Find(ctx, itemFilter(projectID, filters), newestFirst(limit))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var sessions []*model.Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}

	items := make([]model.Item, len(sessions))
	for i, s := range sessions {
		items[i] = s
	}
	return items, nil
}

// loadUsers 聚合出最近活跃的 limit 个用户，再只加载这些用户的会话。
// limit <= 0 时加载全部用户。
func (l *MongoItemLoader) loadUsers(ctx context.Context, projectID string, filters map[string]any, limit int) ([]model.Item, error) {
	f := itemFilter(projectID, filters)
	f["user_id"] = bson.M{"$exists": true, "$ne": ""}

	if limit > 0 {
		ids, err := l.recentUserIDs(ctx, f, limit)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []model.Item{}, nil
		}
		f["user_id"] = bson.M{"$in": ids}
	}

	cur, err := l.sessions.Find(ctx, f, newestFirst(0))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var sessions []*model.Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	return groupUsers(sessions, limit, l.config.MaxSessionsPerUser), nil
}

func (l *MongoItemLoader) recentUserIDs(ctx context.Context, f bson.M, limit int) ([]string, error) {
	cur, err := l.sessions.Aggregate(ctx, recentUsersPipeline(f, limit))
	if err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errors.ErrStoreFailure.WithCause(err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// recentUsersPipeline 按最近一次会话时间倒序取前 limit 个用户 ID。
func recentUsersPipeline(f bson.M, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: f}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "last", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
}

// groupUsers 把按时间倒序排列的会话归到用户下，用户按首次出现排序。
// 超过 limit 的新用户与超过 maxPerUser 的会话被丢弃，取值 <= 0 表示不限。
func groupUsers(sessions []*model.Session, limit, maxPerUser int) []model.Item {
	users := make(map[string]*model.User)
	items := make([]model.Item, 0)
	for _, s := range sessions {
		u, ok := users[s.UserID]
		if !ok {
			if limit > 0 && len(items) >= limit {
				continue
			}
			u = &model.User{Owner: s.Owner, ID: s.UserID}
			users[s.UserID] = u
			items = append(items, u)
		}
		if maxPerUser <= 0 || len(u.Sessions) < maxPerUser {
			u.Sessions = append(u.Sessions, s)
		}
	}
	return items
}
